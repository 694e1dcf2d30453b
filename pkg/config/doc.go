// Package config is the file front end for entity definitions.
//
// Definitions are authored in CUE under a top-level "definitions" struct,
// one entry per entity type. The loader evaluates files or directories,
// unifies them into a single value, and hands each entry to the definition
// compiler as a raw map. Compute sources written as {source: "compute",
// code: "..."} flow through unchanged and are executed by the runtime's
// Starlark evaluator.
//
// A Watcher rebuilds the load result when watched .cue files change, with
// debouncing, for the dev command's hot reload. CLI settings live in a
// separate YAML file handled by Settings.
package config
