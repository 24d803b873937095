// Package logging configures slog with console and JSON handlers, shared
// attribute helpers, and context-derived fields for job and stage tracing.
package logging
