// Package job defines the conversion job model: statuses, source kinds,
// per-job options, content hashing, and the handle callers use to track
// and cancel submitted work.
package job
