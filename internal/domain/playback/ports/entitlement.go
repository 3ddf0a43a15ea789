// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
)

// EntitlementRequest identifies the asset to request a grant for.
type EntitlementRequest struct {
	Kind      model.StreamKind
	AssetID   string
	ChannelID string
	Variant   model.MediaVariant
}

// EntitlementProvider requests the initial grant for a session.
type EntitlementProvider interface {
	RequestEntitlement(ctx context.Context, req EntitlementRequest) (*model.Entitlement, error)
}

// EntitlementChecker answers "may this instant be played". It is the only
// collaborator of the entitlement gate.
type EntitlementChecker interface {
	CheckEntitlement(ctx context.Context, instant int64) (model.Verdict, error)
}

// EntitlementCheckerFunc adapts a function to EntitlementChecker.
type EntitlementCheckerFunc func(ctx context.Context, instant int64) (model.Verdict, error)

func (f EntitlementCheckerFunc) CheckEntitlement(ctx context.Context, instant int64) (model.Verdict, error) {
	return f(ctx, instant)
}

// ProgramService is the lookup-by-instant backend.
type ProgramService interface {
	ProgramAt(ctx context.Context, channelID string, ts int64) (*model.Program, error)
	IsEntitled(ctx context.Context, channelID string, ts int64) (model.Verdict, error)
}
