// Package deck defines the webinar data model consumed by the assembly
// pipeline: slides and their optional enrichments, the deck envelope with its
// narration script, and the per-run generation options.
//
// Values are passed by value into a run and never mutated by it; Prepare
// returns filled-in copies.
package deck
