// Package logging assembles the slog loggers used by the CLI and the scrub
// engine.
//
// Two handlers are available: a compact console format for terminals and a
// JSON format for pipelines. A "component" attribute, when present, is
// promoted into the console line prefix.
package logging
