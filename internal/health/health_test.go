// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timeshift/internal/config"
)

func fixed(name string, status Status) Checker {
	return CheckerFunc{CheckName: name, Fn: func(context.Context) CheckResult {
		return CheckResult{Status: status}
	}}
}

func TestManager_ReadyAggregates(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		wantReady bool
		want      Status
	}{
		{name: "no checkers", wantReady: true, want: StatusHealthy},
		{name: "all healthy", checkers: []Checker{fixed("a", StatusHealthy)}, wantReady: true, want: StatusHealthy},
		{name: "degraded stays ready", checkers: []Checker{fixed("a", StatusHealthy), fixed("b", StatusDegraded)}, wantReady: true, want: StatusDegraded},
		{name: "unhealthy wins", checkers: []Checker{fixed("a", StatusUnhealthy), fixed("b", StatusDegraded)}, wantReady: false, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			resp := m.Ready(context.Background(), false)
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestServeHealth_AlwaysOK(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(fixed("store", StatusUnhealthy))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "v1", resp.Version)
	assert.Contains(t, resp.Checks, "store")
}

func TestServeReady_Unavailable(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(fixed("store", StatusUnhealthy))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Checks, "store", "failing checks are always listed")
}

func TestManager_SlowAndPanickingChecksAreUnhealthy(t *testing.T) {
	m := NewManager("v1")
	m.timeout = 20 * time.Millisecond
	m.RegisterChecker(CheckerFunc{CheckName: "slow", Fn: func(ctx context.Context) CheckResult {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return CheckResult{Status: StatusHealthy}
	}})
	m.RegisterChecker(CheckerFunc{CheckName: "boom", Fn: func(context.Context) CheckResult { panic("bad check") }})
	m.RegisterChecker(fixed("ok", StatusHealthy))

	resp := m.Ready(context.Background(), true)
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Checks["slow"].Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Error)
	assert.Equal(t, StatusUnhealthy, resp.Checks["boom"].Status)
	assert.Contains(t, resp.Checks["boom"].Error, "bad check")
	assert.Equal(t, StatusHealthy, resp.Checks["ok"].Status)
}

func TestServeReady_VerboseListsHealthyChecks(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(fixed("catalog", StatusHealthy))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz?verbose=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Checks, "catalog")
}

func TestFileChecker(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "catalog.yaml")
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(full, []byte("channels: []\n"), 0o600))
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	ctx := context.Background()
	assert.Equal(t, StatusHealthy, NewFileChecker("c", "").Check(ctx).Status)
	assert.Equal(t, StatusHealthy, NewFileChecker("c", full).Check(ctx).Status)
	assert.Equal(t, StatusDegraded, NewFileChecker("c", empty).Check(ctx).Status)
	assert.Equal(t, StatusUnhealthy, NewFileChecker("c", dir).Check(ctx).Status)
	assert.Equal(t, StatusUnhealthy, NewFileChecker("c", filepath.Join(dir, "missing")).Check(ctx).Status)
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, PerformStartupChecks(cfg))

	bad := cfg
	bad.ListenAddr = "no-port"
	require.Error(t, PerformStartupChecks(bad))

	missingDir := cfg
	missingDir.Resume.Backend = "sqlite"
	missingDir.Resume.Dir = filepath.Join(t.TempDir(), "missing")
	require.Error(t, PerformStartupChecks(missingDir))

	okDir := cfg
	okDir.Resume.Backend = "file"
	okDir.Resume.Dir = t.TempDir()
	require.NoError(t, PerformStartupChecks(okDir))

	missingCatalog := cfg
	missingCatalog.Simulator.CatalogPath = filepath.Join(t.TempDir(), "nope.yaml")
	require.Error(t, PerformStartupChecks(missingCatalog))
}
