// Package executor runs database operations with bounded retry, per-attempt
// timeouts, and strict connection accounting. Every operation acquires a
// pooled connection, runs against it, and releases it exactly once whether
// the attempt succeeds, fails, or times out. Retry decisions come from
// explicit error classification, never from error message text.
package executor
