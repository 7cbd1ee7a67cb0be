// Package progress reports staged progress for video assembly runs.
//
// Each stage owns a fixed slice of the overall percent range. The Reporter
// maps stage-local fractions into that range, keeps the overall value
// monotonic, throttles intra-stage updates, and estimates time remaining
// from elapsed time.
package progress
