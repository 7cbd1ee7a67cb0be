// Package narration turns a webinar script into one narration track.
//
// Scripts are split on sentence boundaries into chunks the speech provider
// accepts, each chunk is synthesized under the retry executor with a single
// voice fallback, and requests are paced with a token bucket. Chunk failures
// either drop the passage (best_effort) or fail the stage (strict); a script
// where every chunk fails never yields audio.
package narration
