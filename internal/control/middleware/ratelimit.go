// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/timeshift/internal/control/http/problem"
)

type RateLimitConfig struct {
	RequestLimit int
	WindowSize   time.Duration // default one minute

	// KeyFunc picks the bucket. Default: KeyBySessionToken.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit applies a sliding-window limit per key and answers excess
// requests with a 429 problem and Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = KeyBySessionToken
	}
	window := cfg.WindowSize
	if window <= 0 {
		window = time.Minute
	}
	retryAfter := strconv.Itoa(int(window.Round(time.Second).Seconds()))

	return httprate.Limit(
		cfg.RequestLimit,
		window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w, r, http.StatusTooManyRequests, "system/rate_limited", "Too Many Requests", "RATE_LIMIT_EXCEEDED",
				"request budget for this session is exhausted", nil)
		}),
	)
}

// KeyBySessionToken buckets by bearer token so every playback session gets
// its own budget. Tokens are hashed before they become map keys. Anonymous
// requests fall back to the client IP.
func KeyBySessionToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && strings.TrimSpace(token) != "" {
		sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
		return "tok:" + hex.EncodeToString(sum[:8]), nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
