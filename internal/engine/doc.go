// Package engine adapts an external transcoder to the multimedia engine
// contract used by video assembly: a private virtual filesystem per engine
// instance plus an ffmpeg-style Exec.
//
// FFmpeg keeps its virtual filesystem in a workspace directory that is
// flock-held while the instance is loaded. SweepStale removes workspaces left
// behind by crashed processes. Command builders produce the slideshow encode
// and the audio mux argv; Inspect reads back container metadata via ffprobe.
package engine
