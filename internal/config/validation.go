// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/idna"
)

// Validate checks cfg and returns it with normalised URLs.
func Validate(cfg AppConfig) (AppConfig, error) {
	var errs []error

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("logLevel: %w", err))
	}
	switch cfg.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logFormat: must be json or console, got %q", cfg.LogFormat))
	}

	base, err := normalizeBaseURL(cfg.Exposure.BaseURL)
	if err != nil {
		errs = append(errs, fmt.Errorf("exposure.baseUrl: %w", err))
	} else {
		cfg.Exposure.BaseURL = base
	}
	if cfg.Exposure.Timeout <= 0 {
		errs = append(errs, errors.New("exposure.timeout must be positive"))
	}
	if cfg.Exposure.MaxRetries < 0 {
		errs = append(errs, errors.New("exposure.maxRetries must not be negative"))
	}
	if cfg.Exposure.RateLimit < 0 || cfg.Exposure.RateBurst < 0 {
		errs = append(errs, errors.New("exposure rate limit must not be negative"))
	}

	if cfg.Playback.TimeBehindLive < 0 {
		errs = append(errs, errors.New("playback.timeBehindLive must not be negative"))
	}
	if cfg.Playback.GateTimeout <= 0 {
		errs = append(errs, errors.New("playback.gateTimeout must be positive"))
	}

	switch cfg.Cache.Backend {
	case "none", "memory":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redisAddr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", cfg.Cache.Backend))
	}

	switch cfg.Resume.Backend {
	case "memory":
	case "sqlite", "file":
		if cfg.Resume.Dir == "" {
			errs = append(errs, fmt.Errorf("resume.dir is required for the %s backend", cfg.Resume.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("resume.backend: unknown backend %q", cfg.Resume.Backend))
	}

	if cfg.Simulator.RateLimitRequests < 0 {
		errs = append(errs, errors.New("simulator.rateLimitRequests must not be negative"))
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("telemetry.exporter: unknown exporter %q", cfg.Telemetry.Exporter))
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			errs = append(errs, errors.New("telemetry.samplingRate must be within [0,1]"))
		}
	}

	return cfg, errors.Join(errs...)
}

// normalizeBaseURL requires an absolute http(s) URL and converts an
// internationalised host to its ASCII form.
func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("url is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("url has no host")
	}
	if net.ParseIP(host) == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("invalid host %q: %w", host, err)
		}
		host = strings.ToLower(ascii)
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(host, port)
		} else {
			u.Host = host
		}
	}
	u.RawQuery, u.Fragment = "", ""
	return strings.TrimRight(u.String(), "/"), nil
}
