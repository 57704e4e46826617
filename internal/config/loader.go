package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces every gatehouse environment variable.
	envPrefix = "GATEHOUSE_"

	// EnvSessionID is the session-identifier fallback consulted when the
	// event itself carries none.
	EnvSessionID = "GATEHOUSE_SESSION_ID"
)

// Load reads configuration from the YAML file at configPath (default
// ~/.config/gatehouse/config.yaml), then overrides with GATEHOUSE_*
// environment variables.
//
// Environment variables map to config keys by stripping the prefix and
// lowercasing: GATEHOUSE_STATE_DIR -> state_dir, GATEHOUSE_GATES_HYDRATION
// -> gates.hydration, GATEHOUSE_LOGGING_LEVEL -> logging.level.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "gatehouse", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("opening config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}
		if info.Mode().Perm()&0o022 != 0 {
			return nil, fmt.Errorf("config file %s is group/world writable (mode %o)", configPath, info.Mode().Perm())
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// transformEnvKey maps GATEHOUSE_* variables onto config keys. Two known
// sections (gates, logging) nest; everything else is a flat key that keeps
// its underscores.
func transformEnvKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	// GATEHOUSE_SESSION_ID is the session fallback, not a config key.
	if key == "session_id" {
		return ""
	}

	for _, section := range []string{"gates", "logging"} {
		prefix := section + "_"
		if strings.HasPrefix(key, prefix) {
			return section + "." + strings.TrimPrefix(key, prefix)
		}
	}
	return key
}

// SessionIDFallback returns the session id from the environment, or empty.
func SessionIDFallback() string {
	return os.Getenv(EnvSessionID)
}

// applyDefaults fills unset fields from hardcoded defaults.
func applyDefaults(cfg *Config) error {
	if cfg.StateDir == "" || cfg.AuditDB == "" || cfg.AuditDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		base := filepath.Join(home, ".config", "gatehouse")
		if cfg.StateDir == "" {
			cfg.StateDir = filepath.Join(base, "sessions")
		}
		if cfg.AuditDB == "" {
			cfg.AuditDB = filepath.Join(base, "audit.db")
		}
		if cfg.AuditDir == "" {
			cfg.AuditDir = filepath.Join(base, "audit")
		}
	}
	if cfg.GitTimeout == 0 {
		cfg.GitTimeout = 5 * time.Second
	}
	if cfg.Gates == nil {
		cfg.Gates = make(map[string]string)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	return nil
}
