// Package retry runs collaborator calls with exponential backoff and an
// optional single fallback attempt against an alternate provider, model, or
// voice.
//
// The executor is stateless; one Options value can be shared by concurrent
// callers. Cancellation is always surfaced to the caller unchanged.
package retry
