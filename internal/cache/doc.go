// Package cache deduplicates conversions by content hash. Finished
// outputs are stored as content-addressed objects with a SQLite index;
// in-flight renders are tracked with leases so duplicate submissions
// wait for the first instead of rendering twice.
package cache
