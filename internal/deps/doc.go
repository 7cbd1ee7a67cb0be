// Package deps checks the external binaries and writable directories a
// Lectern installation needs, for the check command and engine start-up.
package deps
