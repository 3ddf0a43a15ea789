// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://127.0.0.1:8088", cfg.Exposure.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Playback.GateTimeout)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
exposure:
  baseUrl: https://exposure.example.com/
  timeout: 3s
playback:
  timeBehindLive: 30s
cache:
  backend: redis
  redisAddr: localhost:6379
`)
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://exposure.example.com", cfg.Exposure.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Exposure.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Playback.TimeBehindLive)
	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Exposure.MaxRetries)
	assert.Equal(t, "redis", cfg.Cache.Backend)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := writeConfig(t, "playback:\n  gateTimeout: 4s\n")
	t.Setenv("TIMESHIFT_GATE_TIMEOUT", "7s")
	t.Setenv("TIMESHIFT_EXPOSURE_MAX_RETRIES", "5")
	t.Setenv("TIMESHIFT_REQUIRE_TOKEN", "yes")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.Playback.GateTimeout)
	assert.Equal(t, 5, cfg.Exposure.MaxRetries)
	assert.True(t, cfg.Simulator.RequireToken)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("TIMESHIFT_EXPOSURE_MAX_RETRIES", "many")
	cfg, err := NewLoader("", "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Exposure.MaxRetries)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "playback:\n  timeBehindLve: 5s\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_MultipleDocumentsRejected(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n---\nlogLevel: debug\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
}

func TestLoad_EmptyFileIsDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Exposure.Timeout, cfg.Exposure.Timeout)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("TIMESHIFT_CACHE_BACKEND", "memcached")
	_, err := NewLoader("", "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}

func TestUnknownEnvKeys(t *testing.T) {
	l := NewLoader("", "dev")
	_, err := l.Load()
	require.NoError(t, err)

	unknown := l.UnknownEnvKeys([]string{
		"PATH=/usr/bin",
		"TIMESHIFT_GATE_TIMEOUT=1s",
		"TIMESHIFT_CONFIG=/etc/timeshift.yaml",
		"TIMESHIFT_GATE_TIMOUT=1s",
	})
	assert.Equal(t, []string{"TIMESHIFT_GATE_TIMOUT"}, unknown)
}
