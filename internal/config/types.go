// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the validated runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel   string `yaml:"logLevel"`
	LogFormat  string `yaml:"logFormat"` // json or console
	ListenAddr string `yaml:"listenAddr"`

	Exposure  ExposureConfig  `yaml:"exposure"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Cache     CacheConfig     `yaml:"cache"`
	Resume    ResumeConfig    `yaml:"resume"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ExposureConfig configures the entitlement backend client.
type ExposureConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	SessionToken     string        `yaml:"sessionToken"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"maxRetries"`
	RateLimit        float64       `yaml:"rateLimit"`
	RateBurst        int           `yaml:"rateBurst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// PlaybackConfig holds the tunables that hot reload applies to live sessions.
type PlaybackConfig struct {
	TimeBehindLive time.Duration `yaml:"timeBehindLive"`
	GateTimeout    time.Duration `yaml:"gateTimeout"`
}

type CacheConfig struct {
	// Backend is one of none, memory, redis.
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
}

type ResumeConfig struct {
	// Backend is one of memory, sqlite, file.
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type SimulatorConfig struct {
	CatalogPath       string        `yaml:"catalog"`
	RequireToken      bool          `yaml:"requireToken"`
	RateLimitRequests int           `yaml:"rateLimitRequests"`
	RateLimitWindow   time.Duration `yaml:"rateLimitWindow"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogFormat:  "json",
		ListenAddr: ":8088",
		Exposure: ExposureConfig{
			BaseURL:          "http://127.0.0.1:8088",
			Timeout:          5 * time.Second,
			MaxRetries:       2,
			RateLimit:        10,
			RateBurst:        20,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Playback: PlaybackConfig{
			GateTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     5 * time.Minute,
		},
		Resume: ResumeConfig{
			Backend: "memory",
		},
		Simulator: SimulatorConfig{
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "timeshift",
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
