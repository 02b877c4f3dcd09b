// Package config loads mocha's YAML configuration: evaluation limits,
// logging, and REPL settings.
package config

import "github.com/thomasrohde/mocha/go/pkg/evaluator"

// Config is the root configuration structure.
type Config struct {
	// Limits bounds every program execution. Zero fields mean unlimited,
	// except MaxCallDepth which defaults to DefaultMaxCallDepth.
	Limits evaluator.Limits `yaml:"limits"`

	Logging LoggingConfig `yaml:"logging"`

	REPL REPLConfig `yaml:"repl"`

	// Source records where the configuration was read from; empty when only
	// defaults apply.
	Source string `yaml:"-"`
}

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// REPLConfig configures the interactive session.
type REPLConfig struct {
	// HistoryFile is where line history is persisted. Empty disables history.
	HistoryFile string `yaml:"history_file"`

	// Prompt is printed before each input line.
	Prompt string `yaml:"prompt"`
}
