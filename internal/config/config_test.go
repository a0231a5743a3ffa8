package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "Load should have written a default file")
}

func TestLoadFillsPartialDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, Default().Engine.ModelID, cfg.Engine.ModelID)
	assert.Equal(t, Default().RateLimiter.CooldownMs, cfg.RateLimiter.CooldownMs)
}

func TestGenerationTimeoutExceedsCooldown(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.Engine.GenerationTimeout, time.Duration(cfg.RateLimiter.CooldownMs)*time.Millisecond)
}

func TestLoadRejectsDirectoryCollidingWithParent(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	_, err := Load(filepath.Join(blocker, "config.yaml"))
	require.Error(t, err)
}
