// Package webhooks ingests provider delivery callbacks. The coordinator
// deduplicates concurrent deliveries of the same event, the processor
// validates the envelope, attributes it to the owning store, and applies
// each contained message and status update with per-item failure
// isolation. Failures land in the error log sink; transient top-level
// failures earn a single deferred re-submission.
package webhooks
