package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "data/checkpoints", cfg.Checkpoint.Dir)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, 20, cfg.Search.ResultLimit)
	require.Equal(t, 1500*time.Millisecond, cfg.Search.Delay)
	require.Equal(t, 25, cfg.Dataset.BatchSize)
	require.Equal(t, 5*time.Second, cfg.Dataset.PollInterval)
	require.Equal(t, 3*time.Minute, cfg.Dataset.PollBudget)
	require.Equal(t, 80, cfg.Content.MinDescChars)
	require.Equal(t, 5, cfg.Reviews.Max)
	require.Equal(t, 600, cfg.Reviews.MaxChars)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placepipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
checkpoint:
  dir: /tmp/ckpt
search:
  result_limit: 5
dataset:
  poll_budget: 10m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/ckpt", cfg.Checkpoint.Dir)
	require.Equal(t, 5, cfg.Search.ResultLimit)
	require.Equal(t, 10*time.Minute, cfg.Dataset.PollBudget)
	// Untouched values keep their defaults.
	require.Equal(t, 25, cfg.Dataset.BatchSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placepipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reviews:
  min_chars: 700
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
