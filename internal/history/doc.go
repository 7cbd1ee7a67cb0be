// Package history persists a ledger of video generation runs in SQLite.
//
// Each run is inserted when it starts, its latest progress snapshot is kept
// current while it executes, and it ends either completed (with the artifact
// URL, duration, size, provenance, and narration gaps) or failed (with the
// stage and categorized message). Runs left running by a crashed process are
// failed by ResetInterrupted.
//
// Inline data URIs are never stored; the ledger records a marker instead so
// the database stays small. Schema changes bump schemaVersion; users clear
// the database to adopt the new schema.
package history
