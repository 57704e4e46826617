// Package config provides configuration loading for gatehouse.
package config

import (
	"fmt"
	"time"
)

// Config is the full gatehouse configuration.
//
// Precedence (highest to lowest): environment variables (GATEHOUSE_*), the
// YAML config file, hardcoded defaults.
type Config struct {
	// StateDir holds the per-session JSON state files.
	StateDir string `koanf:"state_dir"`

	// AuditDB is the SQLite audit trail path.
	AuditDB string `koanf:"audit_db"`

	// AuditDir is where required audit artifacts are materialized.
	AuditDir string `koanf:"audit_dir"`

	// CatalogPath optionally names a YAML file with extra gate definitions
	// layered on top of the built-in catalogue.
	CatalogPath string `koanf:"catalog"`

	// GitTimeout bounds the uncommitted-work subprocess probe. The host
	// runtime blocks until the hook exits, so this is a latency budget.
	GitTimeout time.Duration `koanf:"git_timeout"`

	// Gates maps gate name to enforcement mode: "warn" or "block".
	// Unlisted gates default to warn.
	Gates map[string]string `koanf:"gates"`

	Logging LoggingConfig `koanf:"logging"`
}

// LoggingConfig controls the zap logger. Output always goes to stderr;
// stdout carries the result contract.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	if c.GitTimeout < 0 {
		return fmt.Errorf("git_timeout must not be negative")
	}
	if c.GitTimeout > 30*time.Second {
		return fmt.Errorf("git_timeout must not exceed 30s (hook latency budget), got %s", c.GitTimeout)
	}
	for gate, mode := range c.Gates {
		if mode != "warn" && mode != "block" {
			return fmt.Errorf("gate %q mode must be warn or block, got %q", gate, mode)
		}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
