// Package hooks implements the repository commit gate: a pinned list of
// external tool repositories, each declaring hooks that run over the staged
// file set before a commit is allowed.
//
// Responsibilities: config parsing and validation, per-hook path filtering,
// tool invocation, and pass/fail reporting. The tools themselves (formatters,
// linters, type checkers) are external collaborators and are never
// reimplemented here.
//
// A commit proceeds only when every hook exits cleanly over its filtered
// file subset.
package hooks
