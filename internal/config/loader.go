// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by
// unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: map[string]struct{}{EnvConfigPath: {}},
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load parses the file strictly, applies the environment and validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if cfg.Resume.Dir != "" {
		if abs, err := filepath.Abs(cfg.Resume.Dir); err == nil {
			cfg.Resume.Dir = abs
		}
	}

	normalized, err := Validate(cfg)
	if err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return normalized, nil
}

// loadFile decodes the YAML file over cfg. Keys absent from the file keep
// their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = l.envString(EnvPrefix+"LOG_FORMAT", cfg.LogFormat)
	cfg.ListenAddr = l.envString(EnvPrefix+"LISTEN_ADDR", cfg.ListenAddr)

	e := &cfg.Exposure
	e.BaseURL = l.envString(EnvPrefix+"EXPOSURE_BASE_URL", e.BaseURL)
	e.SessionToken = l.envString(EnvPrefix+"EXPOSURE_SESSION_TOKEN", e.SessionToken)
	e.Timeout = l.envDuration(EnvPrefix+"EXPOSURE_TIMEOUT", e.Timeout)
	e.MaxRetries = l.envInt(EnvPrefix+"EXPOSURE_MAX_RETRIES", e.MaxRetries)
	e.RateLimit = l.envFloat(EnvPrefix+"EXPOSURE_RATE_LIMIT", e.RateLimit)
	e.RateBurst = l.envInt(EnvPrefix+"EXPOSURE_RATE_BURST", e.RateBurst)
	e.BreakerThreshold = l.envInt(EnvPrefix+"EXPOSURE_BREAKER_THRESHOLD", e.BreakerThreshold)
	e.BreakerReset = l.envDuration(EnvPrefix+"EXPOSURE_BREAKER_RESET", e.BreakerReset)

	cfg.Playback.TimeBehindLive = l.envDuration(EnvPrefix+"TIME_BEHIND_LIVE", cfg.Playback.TimeBehindLive)
	cfg.Playback.GateTimeout = l.envDuration(EnvPrefix+"GATE_TIMEOUT", cfg.Playback.GateTimeout)

	c := &cfg.Cache
	c.Backend = l.envString(EnvPrefix+"CACHE_BACKEND", c.Backend)
	c.TTL = l.envDuration(EnvPrefix+"CACHE_TTL", c.TTL)
	c.RedisAddr = l.envString(EnvPrefix+"REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = l.envString(EnvPrefix+"REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = l.envInt(EnvPrefix+"REDIS_DB", c.RedisDB)

	cfg.Resume.Backend = l.envString(EnvPrefix+"RESUME_BACKEND", cfg.Resume.Backend)
	cfg.Resume.Dir = l.envString(EnvPrefix+"RESUME_DIR", cfg.Resume.Dir)

	s := &cfg.Simulator
	s.CatalogPath = l.envString(EnvPrefix+"CATALOG", s.CatalogPath)
	s.RequireToken = l.envBool(EnvPrefix+"REQUIRE_TOKEN", s.RequireToken)
	s.RateLimitRequests = l.envInt(EnvPrefix+"RATE_LIMIT_REQUESTS", s.RateLimitRequests)
	s.RateLimitWindow = l.envDuration(EnvPrefix+"RATE_LIMIT_WINDOW", s.RateLimitWindow)

	t := &cfg.Telemetry
	t.Enabled = l.envBool(EnvPrefix+"TRACING_ENABLED", t.Enabled)
	t.ServiceName = l.envString(EnvPrefix+"TRACING_SERVICE_NAME", t.ServiceName)
	t.Exporter = l.envString(EnvPrefix+"TRACING_EXPORTER", t.Exporter)
	t.Endpoint = l.envString(EnvPrefix+"TRACING_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat(EnvPrefix+"TRACING_SAMPLING_RATE", t.SamplingRate)
}

// UnknownEnvKeys lists TIMESHIFT_* variables in environ the loader never
// consumed, usually typos. Call after Load.
func (l *Loader) UnknownEnvKeys(environ []string) []string {
	var unknown []string
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}
