// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, slide indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the Categorize /
//     UserMessage pair that turn any failure into a user-facing category with
//     a suggested remedy.
//   - StatusError, the typed HTTP failure returned by collaborator clients so
//     retry classification can key off status codes.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
