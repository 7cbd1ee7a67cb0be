// Package logs reads the Lectern log file for `lectern logs`.
//
// It returns the last N lines with bounded memory, optionally narrowed to a
// single run id, and follows the file for new lines until the caller's
// context ends. Offsets let a follower resume exactly where the initial read
// stopped, and a truncated or rotated file restarts from the beginning.
package logs
