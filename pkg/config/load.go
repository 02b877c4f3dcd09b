package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is looked up in the working directory when no explicit
// configuration path is given.
const ProjectFileName = ".mocha.yaml"

// Load reads the configuration at path, applies defaults and environment
// overrides, and validates the result. An empty path falls back to Discover.
func Load(path string) (*Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		path = Discover(wd)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
		cfg.Source = path
	}

	ApplyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Discover returns the configuration file that applies to dir: the project
// file (dir/.mocha.yaml) wins over the user file (~/.mocha/config.yaml). It
// returns "" when neither exists.
func Discover(dir string) string {
	candidates := []string{filepath.Join(dir, ProjectFileName)}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".mocha", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		} else if !errors.Is(err, fs.ErrNotExist) {
			// unreadable but present: let Load surface the error
			return path
		}
	}
	return ""
}

// applyEnvOverrides applies MOCHA_* environment variables, which always take
// precedence over file-based configuration.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError

	if val := os.Getenv("MOCHA_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("MOCHA_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("MOCHA_HISTORY_FILE"); val != "" {
		cfg.REPL.HistoryFile = val
	}
	if val := os.Getenv("MOCHA_TIME_MS"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Limits.TimeMs = n
		} else {
			errs = append(errs, FieldError{Field: "MOCHA_TIME_MS", Message: "must be an integer"})
		}
	}
	if val := os.Getenv("MOCHA_MAX_ITERATIONS"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Limits.MaxIterations = n
		} else {
			errs = append(errs, FieldError{Field: "MOCHA_MAX_ITERATIONS", Message: "must be an integer"})
		}
	}
	if val := os.Getenv("MOCHA_MAX_CALL_DEPTH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Limits.MaxCallDepth = n
		} else {
			errs = append(errs, FieldError{Field: "MOCHA_MAX_CALL_DEPTH", Message: "must be an integer"})
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
