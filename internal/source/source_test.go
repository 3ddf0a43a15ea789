// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	"github.com/ManuGH/timeshift/internal/entitlement"
)

type providerFunc func(ctx context.Context, req ports.EntitlementRequest) (*model.Entitlement, error)

func (f providerFunc) RequestEntitlement(ctx context.Context, req ports.EntitlementRequest) (*model.Entitlement, error) {
	return f(ctx, req)
}

func TestChannelPlayable_PrepareSource(t *testing.T) {
	var got ports.EntitlementRequest
	provider := providerFunc(func(_ context.Context, req ports.EntitlementRequest) (*model.Entitlement, error) {
		got = req
		return &model.Entitlement{MediaLocator: "https://cdn/ch.isml/manifest.mpd"}, nil
	})

	src, err := ChannelPlayable{ChannelID: "ch-1"}.PrepareSource(context.Background(), provider)
	require.NoError(t, err)
	assert.Equal(t, ports.EntitlementRequest{Kind: model.StreamChannel, AssetID: "ch-1"}, got)
	assert.Equal(t, model.StreamChannel, src.Kind)
	assert.Equal(t, model.AlwaysLive, src.Classification)
	assert.Equal(t, "ch-1", src.ProgramServiceChannelID())
	assert.True(t, src.Entitlement.Live)
	assert.True(t, src.IsUnifiedPackager())
}

func TestChannelPlayable_NoFallback(t *testing.T) {
	calls := 0
	provider := providerFunc(func(context.Context, ports.EntitlementRequest) (*model.Entitlement, error) {
		calls++
		return nil, &entitlement.Error{Sentinel: entitlement.ErrForbidden, HTTPCode: http.StatusForbidden, Reason: entitlement.ReasonNoMediaForProgram}
	})
	_, err := ChannelPlayable{ChannelID: "ch-1"}.PrepareSource(context.Background(), provider)
	assert.ErrorIs(t, err, entitlement.ErrForbidden)
	assert.Equal(t, 1, calls)
}

func TestProgramPlayable_PrepareSource(t *testing.T) {
	tests := []struct {
		name string
		live bool
		want model.Classification
	}{
		{name: "catch-up", live: false, want: model.OnDemand},
		{name: "live tail", live: true, want: model.LiveTail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := providerFunc(func(_ context.Context, req ports.EntitlementRequest) (*model.Entitlement, error) {
				assert.Equal(t, model.StreamProgram, req.Kind)
				assert.Equal(t, "ch-1", req.ChannelID)
				return &model.Entitlement{MediaLocator: "https://cdn/p.m3u8", Live: tt.live}, nil
			})
			src, err := ProgramPlayable{ProgramID: "p-1", ChannelID: "ch-1"}.PrepareSource(context.Background(), provider)
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Classification)
			assert.Equal(t, "p-1", src.AssetID)
			assert.Equal(t, "p-1", src.ProgramID)
			assert.Equal(t, "ch-1", src.ProgramServiceChannelID())
			assert.False(t, src.IsUnifiedPackager())
		})
	}
}

func TestProgramPlayable_FallsBackToUnencrypted(t *testing.T) {
	var variants []model.MediaVariant
	provider := providerFunc(func(_ context.Context, req ports.EntitlementRequest) (*model.Entitlement, error) {
		variants = append(variants, req.Variant)
		if req.Variant == model.VariantDefault {
			return nil, &entitlement.Error{Sentinel: entitlement.ErrForbidden, HTTPCode: http.StatusForbidden, Reason: entitlement.ReasonNoMediaForProgram}
		}
		return &model.Entitlement{MediaLocator: "https://cdn/p.m3u8"}, nil
	})
	src, err := ProgramPlayable{ProgramID: "p-1", ChannelID: "ch-1"}.PrepareSource(context.Background(), provider)
	require.NoError(t, err)
	assert.Equal(t, []model.MediaVariant{model.VariantDefault, model.VariantUnencrypted}, variants)
	assert.Equal(t, model.VariantUnencrypted, src.Entitlement.Variant)
}

func TestPrepareSource_Validation(t *testing.T) {
	provider := providerFunc(func(context.Context, ports.EntitlementRequest) (*model.Entitlement, error) {
		return nil, errors.New("unreachable")
	})
	_, err := ChannelPlayable{}.PrepareSource(context.Background(), provider)
	assert.ErrorIs(t, err, ErrMissingID)
	_, err = ProgramPlayable{ProgramID: "p"}.PrepareSource(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoProvider)

	nilProvider := providerFunc(func(context.Context, ports.EntitlementRequest) (*model.Entitlement, error) { return nil, nil })
	_, err = ChannelPlayable{ChannelID: "c"}.PrepareSource(context.Background(), nilProvider)
	assert.ErrorIs(t, err, ErrNilEntitlement)
}
