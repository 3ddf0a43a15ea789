// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package exposuresim

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	"github.com/ManuGH/timeshift/internal/entitlement"
	"github.com/ManuGH/timeshift/internal/health"
	"github.com/ManuGH/timeshift/internal/resume"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *entitlement.Client) {
	t.Helper()
	cat, err := LoadCatalog("testdata/catalog.yaml")
	require.NoError(t, err)

	logger := zerolog.Nop()
	opts.Logger = &logger
	srv := httptest.NewServer(New(cat, resume.NewMemoryStore(), opts))
	t.Cleanup(srv.Close)

	client := entitlement.NewClient(srv.URL, entitlement.Options{
		SessionToken: "viewer-1",
		Backoff:      time.Millisecond,
		RateLimit:    1000,
	})
	return srv, client
}

func TestPlay_Channel(t *testing.T) {
	_, client := newTestServer(t, Options{})
	ent, err := client.RequestEntitlement(context.Background(), ports.EntitlementRequest{Kind: model.StreamChannel, AssetID: "ch-1"})
	require.NoError(t, err)
	assert.True(t, ent.Live)
	assert.True(t, ent.IsUnifiedPackager())
	assert.NotEmpty(t, ent.PlayToken)
}

func TestPlay_UnknownAsset(t *testing.T) {
	_, client := newTestServer(t, Options{})
	_, err := client.RequestEntitlement(context.Background(), ports.EntitlementRequest{Kind: model.StreamProgram, AssetID: "nope"})
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestPlay_NoMediaFallsBackToUnencrypted(t *testing.T) {
	_, client := newTestServer(t, Options{})
	req := ports.EntitlementRequest{Kind: model.StreamProgram, AssetID: "p-morning", ChannelID: "ch-1"}

	_, err := client.RequestEntitlement(context.Background(), req)
	require.Error(t, err)
	assert.True(t, entitlement.IsNoMediaForProgram(err))

	ent, err := entitlement.Acquire(context.Background(), client, req)
	require.NoError(t, err)
	assert.Equal(t, model.VariantUnencrypted, ent.Variant)
	assert.Equal(t, "p-morning", ent.ProgramID)
}

func TestPlay_DeniedProgram(t *testing.T) {
	_, client := newTestServer(t, Options{})
	_, err := entitlement.Acquire(context.Background(), client, ports.EntitlementRequest{Kind: model.StreamProgram, AssetID: "p-film"})
	require.Error(t, err)
	assert.ErrorIs(t, err, entitlement.ErrForbidden)
	assert.False(t, entitlement.IsNoMediaForProgram(err))
}

func TestValidate(t *testing.T) {
	_, client := newTestServer(t, Options{})
	v, err := client.ValidateEntitlement(context.Background(), "p-news", "ch-1")
	require.NoError(t, err)
	assert.True(t, v.Granted)

	v, err = client.ValidateEntitlement(context.Background(), "p-film", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, model.Denied("BLACKED_OUT"), v)
}

func TestProgramAt(t *testing.T) {
	_, client := newTestServer(t, Options{})
	p, err := client.ProgramAt(context.Background(), "ch-1", 4_000_000)
	require.NoError(t, err)
	assert.Equal(t, model.Program{ProgramID: "p-news", ChannelID: "ch-1", AssetID: "p-news", StartMs: 3_600_000, EndMs: 7_200_000}, *p)

	_, err = client.ProgramAt(context.Background(), "ch-1", 8_000_000)
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestProgramAt_InvalidTimeIsProblem(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	resp, err := http.Get(srv.URL + "/v2/epg/ch-1/program?time=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INVALID_TIME", body["code"])
}

func TestBookmarkRoundTrip(t *testing.T) {
	_, client := newTestServer(t, Options{})
	ctx := context.Background()
	offset := int64(90_000)
	require.NoError(t, client.PutBookmark(ctx, "p-news", &offset, nil))

	ent, err := client.RequestEntitlement(ctx, ports.EntitlementRequest{Kind: model.StreamProgram, AssetID: "p-news"})
	require.NoError(t, err)
	require.NotNil(t, ent.LastViewedOffsetMs)
	assert.Equal(t, offset, *ent.LastViewedOffsetMs)
	assert.Nil(t, ent.LastViewedTimeMs)

	// Bookmarks are per principal.
	other := entitlement.NewClient(client.BaseURL(), entitlement.Options{SessionToken: "viewer-2", RateLimit: 1000})
	ent, err = other.RequestEntitlement(ctx, ports.EntitlementRequest{Kind: model.StreamProgram, AssetID: "p-news"})
	require.NoError(t, err)
	assert.Nil(t, ent.LastViewedOffsetMs)
}

func TestRequireToken(t *testing.T) {
	srv, _ := newTestServer(t, Options{RequireToken: true})
	anon := entitlement.NewClient(srv.URL, entitlement.Options{RateLimit: 1000})
	_, err := anon.ProgramAt(context.Background(), "ch-1", 1)
	assert.ErrorIs(t, err, entitlement.ErrForbidden)
	assert.Equal(t, http.StatusUnauthorized, entitlement.HTTPCode(err))
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestReadyz_EmptyCatalogIsDegraded(t *testing.T) {
	srv := httptest.NewServer(New(&Catalog{}, nil, Options{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz?verbose=true")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body health.ReadinessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, health.StatusDegraded, body.Status)
	assert.Equal(t, health.StatusDegraded, body.Checks["catalog"].Status)
	assert.Equal(t, health.StatusHealthy, body.Checks["resume_store"].Status)
}
