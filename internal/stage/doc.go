// Package stage holds the readiness contract shared by the preparing stage of
// a generation run and the check command.
package stage
