// Package main hosts the Lectern CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, logging, run history, and the
// internal collaborators together so subcommands can focus on presenting
// results. Generation, export, and drafting logic lives in internal packages;
// commands here only resolve inputs and render output.
package main
