// Package assembly runs the video assembly state machine.
//
// A run moves strictly through preparing, generating_audio, creating_slides,
// assembling_video, and finalizing before completing. Preparing validates the
// deck and options, resolves the template, allocates slide durations, runs
// collaborator health probes, and loads the multimedia engine. Narration and
// slide rendering run through their own packages; slides are rendered in
// small chunks to bound memory.
//
// When the engine cannot load or an encode fails, the run falls back to a
// placeholder manifest tagged with ProvenancePlaceholder and still reports
// every stage. Engine workspace files are removed after every assembly
// attempt, including cancelled ones. Any other failure ends the run with a
// *RunError naming the failed stage; no artifact is returned.
//
// Each run is mirrored into the history ledger and its terminal outcome is
// published through the notifications service when one is configured.
package assembly
