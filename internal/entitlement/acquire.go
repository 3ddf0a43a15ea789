// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package entitlement

import (
	"context"
	"errors"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	xglog "github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/metrics"
)

// ErrNoProvider is returned when Acquire is called without a backend.
var ErrNoProvider = errors.New("entitlement: no provider configured")

// Acquire requests an entitlement for req. A 403 NO_MEDIA_FOR_PROGRAM
// rejection of a default-variant request is retried exactly once with the
// unencrypted variant; every other failure is returned as is.
func Acquire(ctx context.Context, provider ports.EntitlementProvider, req ports.EntitlementRequest) (*model.Entitlement, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}

	ent, err := provider.RequestEntitlement(ctx, req)
	if err == nil {
		metrics.RecordEntitlementRequest(string(req.Variant), "success")
		return ent, nil
	}
	if req.Variant == model.VariantUnencrypted || !IsNoMediaForProgram(err) {
		metrics.RecordEntitlementRequest(string(req.Variant), "failed")
		return nil, err
	}

	logger := xglog.WithComponentFromContext(ctx, "entitlement")
	logger.Info().
		Str(xglog.FieldEvent, "entitlement.fallback").
		Str(xglog.FieldAssetID, req.AssetID).
		Str(xglog.FieldChannelID, req.ChannelID).
		Str(xglog.FieldVariant, string(model.VariantUnencrypted)).
		Msg("no media for program, retrying with unencrypted variant")

	retry := req
	retry.Variant = model.VariantUnencrypted
	ent, err = provider.RequestEntitlement(ctx, retry)
	if err != nil {
		metrics.RecordEntitlementRequest(string(retry.Variant), "fallback_failed")
		return nil, err
	}
	metrics.RecordEntitlementRequest(string(retry.Variant), "fallback_success")
	if ent.Variant == model.VariantDefault {
		ent.Variant = model.VariantUnencrypted
	}
	return ent, nil
}
