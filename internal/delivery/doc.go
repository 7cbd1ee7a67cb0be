// Package delivery saves finished artifacts to the local filesystem.
//
// Artifact URLs are a trust boundary: only https and data URLs are accepted,
// and file names are sanitized so a title can never address a path outside
// the destination directory.
package delivery
