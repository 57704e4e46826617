package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	base := filepath.Join(home, ".config", "gatehouse")

	assert.Equal(t, filepath.Join(base, "sessions"), cfg.StateDir)
	assert.Equal(t, filepath.Join(base, "audit.db"), cfg.AuditDB)
	assert.Equal(t, filepath.Join(base, "audit"), cfg.AuditDir)
	assert.Equal(t, 5*time.Second, cfg.GitTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Empty(t, cfg.Gates)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
state_dir: /tmp/gh-state
git_timeout: 10s
gates:
  hydration: block
  quality-check: warn
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/gh-state", cfg.StateDir)
	assert.Equal(t, 10*time.Second, cfg.GitTimeout)
	assert.Equal(t, "block", cfg.Gates["hydration"])
	assert.Equal(t, "warn", cfg.Gates["quality-check"])
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_dir: /from/file\n"), 0o600))

	t.Setenv("GATEHOUSE_STATE_DIR", "/from/env")
	t.Setenv("GATEHOUSE_GATES_HYDRATION", "block")
	t.Setenv("GATEHOUSE_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.StateDir)
	assert.Equal(t, "block", cfg.Gates["hydration"])
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_SessionIDEnvIsNotAConfigKey(t *testing.T) {
	t.Setenv("GATEHOUSE_SESSION_ID", "abc123")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "abc123", SessionIDFallback())
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad gate mode":   "gates:\n  hydration: maybe\n",
		"bad log format":  "logging:\n  format: xml\n",
		"bad git timeout": "git_timeout: 5m\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_RejectsWorldWritableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_dir: /x\n"), 0o600))
	// WriteFile's mode is umask-filtered; force the loose bits explicitly.
	require.NoError(t, os.Chmod(path, 0o666))
	_, err := Load(path)
	assert.ErrorContains(t, err, "writable")
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_dir: [unclosed\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_GitTimeoutBounds(t *testing.T) {
	cfg := &Config{StateDir: "/x", GitTimeout: -time.Second}
	assert.Error(t, cfg.Validate())

	cfg.GitTimeout = 31 * time.Second
	assert.Error(t, cfg.Validate())

	cfg.GitTimeout = 30 * time.Second
	assert.NoError(t, cfg.Validate())
}
