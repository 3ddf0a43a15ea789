// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package source turns a playable reference into a model.Source by acquiring
// its entitlement.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	"github.com/ManuGH/timeshift/internal/entitlement"
)

var (
	ErrMissingID      = errors.New("source: missing asset id")
	ErrNoProvider     = errors.New("source: no entitlement provider")
	ErrNilEntitlement = errors.New("source: provider returned no entitlement")
)

// Playable is something a session can start.
type Playable interface {
	Kind() model.StreamKind
	AssetID() string
	PrepareSource(ctx context.Context, provider ports.EntitlementProvider) (model.Source, error)
}

// ChannelPlayable is a live channel. Its source is always live.
type ChannelPlayable struct {
	ChannelID string
}

func (c ChannelPlayable) Kind() model.StreamKind { return model.StreamChannel }
func (c ChannelPlayable) AssetID() string        { return c.ChannelID }

// PrepareSource requests a channel entitlement. Channels have no unencrypted
// fallback.
func (c ChannelPlayable) PrepareSource(ctx context.Context, provider ports.EntitlementProvider) (model.Source, error) {
	if strings.TrimSpace(c.ChannelID) == "" {
		return model.Source{}, ErrMissingID
	}
	if provider == nil {
		return model.Source{}, ErrNoProvider
	}
	ent, err := provider.RequestEntitlement(ctx, ports.EntitlementRequest{
		Kind:    model.StreamChannel,
		AssetID: c.ChannelID,
	})
	if err != nil {
		return model.Source{}, fmt.Errorf("prepare channel %s: %w", c.ChannelID, err)
	}
	if ent == nil {
		return model.Source{}, ErrNilEntitlement
	}
	return NewChannelSource(c.ChannelID, *ent), nil
}

// ProgramPlayable is a catch-up or live-tail program on a channel.
type ProgramPlayable struct {
	ProgramID string
	ChannelID string
}

func (p ProgramPlayable) Kind() model.StreamKind { return model.StreamProgram }
func (p ProgramPlayable) AssetID() string        { return p.ProgramID }

// PrepareSource acquires a program entitlement, falling back to the
// unencrypted variant when the backend has no protected media.
func (p ProgramPlayable) PrepareSource(ctx context.Context, provider ports.EntitlementProvider) (model.Source, error) {
	if strings.TrimSpace(p.ProgramID) == "" {
		return model.Source{}, ErrMissingID
	}
	if provider == nil {
		return model.Source{}, ErrNoProvider
	}
	ent, err := entitlement.Acquire(ctx, provider, ports.EntitlementRequest{
		Kind:      model.StreamProgram,
		AssetID:   p.ProgramID,
		ChannelID: p.ChannelID,
	})
	if err != nil {
		return model.Source{}, fmt.Errorf("prepare program %s: %w", p.ProgramID, err)
	}
	if ent == nil {
		return model.Source{}, ErrNilEntitlement
	}
	return NewProgramSource(p.ProgramID, p.ChannelID, *ent), nil
}

// NewChannelSource builds the source for a channel entitlement.
func NewChannelSource(channelID string, ent model.Entitlement) model.Source {
	ent.Live = true
	if ent.ChannelID == "" {
		ent.ChannelID = channelID
	}
	return model.Source{
		Kind:           model.StreamChannel,
		AssetID:        channelID,
		ChannelID:      channelID,
		Classification: model.AlwaysLive,
		Entitlement:    ent,
	}
}

// NewProgramSource builds the source for a program entitlement. The
// classification is refined at seek time from the engine.
func NewProgramSource(programID, channelID string, ent model.Entitlement) model.Source {
	if channelID == "" {
		channelID = ent.ChannelID
	}
	class := model.OnDemand
	if ent.Live {
		class = model.LiveTail
	}
	return model.Source{
		Kind:           model.StreamProgram,
		AssetID:        programID,
		ChannelID:      channelID,
		ProgramID:      programID,
		Classification: class,
		Entitlement:    ent,
	}
}
