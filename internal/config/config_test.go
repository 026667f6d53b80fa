package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendFS, cfg.Workspace.Backend)
	assert.Equal(t, 10*time.Second, cfg.Checkpoint.Timeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "PLANCRAFT_WORKSPACES", cfg.NATS.Bucket)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, *Default(), *cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace:
  root: ~/work/plans
checkpoint:
  timeout: 3s
logging:
  level: debug
  format: json
`), 0o600))
	t.Setenv("PLANCRAFT_LOGGING_LEVEL", "error")
	t.Setenv("PLANCRAFT_SERVER_ADDR", ":9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "work", "plans"), cfg.Workspace.Root)
	assert.Equal(t, 3*time.Second, cfg.Checkpoint.Timeout)
	assert.Equal(t, "error", cfg.Logging.Level, "environment wins over file")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendFS, cfg.Workspace.Backend)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := map[string]string{
		"backend":     "workspace:\n  backend: s3\n",
		"nats url":    "workspace:\n  backend: nats\n",
		"timeout":     "checkpoint:\n  timeout: 0s\n",
		"sample rate": "telemetry:\n  sample_rate: 2\n",
		"yaml":        "workspace: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSetAndGet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	assert.Error(t, Set(path, "workspace.backend", "nats"), "nats without url or embedded is invalid")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "rejected values are not written")

	require.NoError(t, Set(path, "nats.embedded", "true"))
	require.NoError(t, Set(path, "workspace.backend", "nats"))
	require.NoError(t, Set(path, "checkpoint.timeout", "45s"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendNATS, cfg.Workspace.Backend)
	assert.True(t, cfg.NATS.Embedded)
	assert.Equal(t, 45*time.Second, cfg.Checkpoint.Timeout)

	v, err := Get(path, "checkpoint.timeout")
	require.NoError(t, err)
	assert.Equal(t, "45s", v)

	assert.Error(t, Set(path, "no.such.key", "x"))
	_, err = Get(path, "no.such.key")
	assert.Error(t, err)
}
