// Package audit delivers portal audit events (guard decisions, logins,
// logouts) to a sink without blocking the caller.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full semantics.
//   - [Event]: timestamp, type, viewer, guard decision, outcome, metadata.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the portal owns that.
//   - Import goBlog or any sibling package.
package audit
