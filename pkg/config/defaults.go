package config

import (
	"os"
	"path/filepath"

	"github.com/thomasrohde/mocha/go/pkg/evaluator"
)

// Default values for configuration fields.
const (
	DefaultMaxCallDepth = evaluator.DefaultMaxCallDepth

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"

	DefaultHistoryFileName = ".mocha_history"
	DefaultPrompt          = "mocha> "
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Limits.MaxCallDepth == 0 {
		cfg.Limits.MaxCallDepth = DefaultMaxCallDepth
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.REPL.HistoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.REPL.HistoryFile = filepath.Join(home, DefaultHistoryFileName)
		}
	}
	if cfg.REPL.Prompt == "" {
		cfg.REPL.Prompt = DefaultPrompt
	}
}
