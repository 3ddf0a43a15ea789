// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package programservice answers which program airs on a channel at an
// instant and whether the viewer may play it.
package programservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/timeshift/internal/cache"
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	"github.com/ManuGH/timeshift/internal/entitlement"
	xglog "github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/metrics"
)

// ReasonGapInEpg is the denial reason when no program airs at the instant.
const ReasonGapInEpg = "GAP_IN_EPG"

const (
	// DefaultTTL bounds how long a looked up program is reused.
	DefaultTTL = 5 * time.Minute
	// DefaultLookupTimeout bounds one shared backend lookup.
	DefaultLookupTimeout = 10 * time.Second
)

// Backend is the exposure API surface the service needs. *entitlement.Client
// implements it.
type Backend interface {
	ProgramAt(ctx context.Context, channelID string, ts int64) (*model.Program, error)
	ValidateEntitlement(ctx context.Context, programID, channelID string) (model.Verdict, error)
}

type Options struct {
	Cache         cache.Cache
	TTL           time.Duration
	LookupTimeout time.Duration
	Sink          ports.WarningSink
	Logger        *zerolog.Logger
}

// Service looks up programs by instant and validates entitlements for them.
type Service struct {
	backend       Backend
	cache         cache.Cache
	ttl           time.Duration
	lookupTimeout time.Duration
	sink          ports.WarningSink
	logger        zerolog.Logger
	sf            singleflight.Group
}

var _ ports.ProgramService = (*Service)(nil)

// New creates a Service. A nil cache disables caching.
func New(backend Backend, opts Options) *Service {
	s := &Service{
		backend:       backend,
		cache:         opts.Cache,
		ttl:           opts.TTL,
		lookupTimeout: opts.LookupTimeout,
		sink:          opts.Sink,
	}
	if s.cache == nil {
		s.cache = cache.NewNoOpCache()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.lookupTimeout <= 0 {
		s.lookupTimeout = DefaultLookupTimeout
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	} else {
		s.logger = xglog.WithComponent("programservice")
	}
	return s
}

// ProgramAt returns the program airing on channelID at ts. The last program
// seen per channel is cached and reused while it covers the instant.
//
// Concurrent lookups for the same instant share one backend call. The shared
// call is detached from every caller's cancellation and bounded by the lookup
// timeout instead; a caller whose ctx ends stops waiting without failing the
// others.
func (s *Service) ProgramAt(ctx context.Context, channelID string, ts int64) (*model.Program, error) {
	key := cacheKey(channelID)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var p model.Program
		if err := json.Unmarshal(raw, &p); err == nil && p.Airs(ts) {
			metrics.RecordProgramLookup(true)
			return &p, nil
		}
	}
	metrics.RecordProgramLookup(false)

	call := s.sf.DoChan(key+"@"+strconv.FormatInt(ts, 10), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lookupTimeout)
		defer cancel()
		p, err := s.backend.ProgramAt(lookupCtx, channelID, ts)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(p); err == nil {
			s.cache.Set(lookupCtx, key, raw, s.ttl)
		}
		return p, nil
	})

	var res singleflight.Result
	select {
	case res = <-call:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		s.logger.Debug().Str(xglog.FieldChannelID, channelID).Int64(xglog.FieldRequestedMs, ts).Msg("program lookup shared")
	}
	p := *res.Val.(*model.Program)
	return &p, nil
}

// IsEntitled looks up the program at ts and validates the entitlement for
// it. A gap in the EPG is a denial; backend failures are errors. Both are
// also reported as warnings unless ctx was cancelled.
func (s *Service) IsEntitled(ctx context.Context, channelID string, ts int64) (model.Verdict, error) {
	p, err := s.ProgramAt(ctx, channelID, ts)
	switch {
	case errors.Is(err, entitlement.ErrNotFound):
		s.warn(ctx, model.GapInEpg(ts, channelID))
		return model.Denied(ReasonGapInEpg), nil
	case err != nil:
		if ctx.Err() == nil {
			s.warn(ctx, model.ProgramLookupFailed(ts, channelID, err))
		}
		return model.Verdict{}, fmt.Errorf("lookup program at %d on %s: %w", ts, channelID, err)
	case !p.Airs(ts):
		s.warn(ctx, model.GapInEpg(ts, channelID))
		return model.Denied(ReasonGapInEpg), nil
	}

	verdict, err := s.backend.ValidateEntitlement(ctx, p.ProgramID, channelID)
	if err != nil {
		if ctx.Err() == nil {
			s.warn(ctx, model.EntitlementValidationFailed(p.ProgramID, channelID, err))
		}
		return model.Verdict{}, fmt.Errorf("validate program %s on %s: %w", p.ProgramID, channelID, err)
	}
	if verdict.ProgramID == "" {
		verdict.ProgramID = p.ProgramID
	}
	return verdict, nil
}

// Checker binds the service to one channel for the entitlement gate.
func (s *Service) Checker(channelID string) ports.EntitlementChecker {
	return ports.EntitlementCheckerFunc(func(ctx context.Context, instant int64) (model.Verdict, error) {
		return s.IsEntitled(ctx, channelID, instant)
	})
}

// Invalidate drops the cached program for channelID.
func (s *Service) Invalidate(ctx context.Context, channelID string) {
	s.cache.Delete(ctx, cacheKey(channelID))
}

func (s *Service) warn(ctx context.Context, w model.Warning) {
	metrics.RecordWarning(w.Code())
	log := xglog.WithContext(ctx, s.logger)
	log.Warn().
		Err(w.Err).
		Str(xglog.FieldEvent, "programservice.warning").
		Str(xglog.FieldReason, w.Code()).
		Str(xglog.FieldChannelID, w.ChannelID).
		Msg(w.Message())
	if s.sink != nil {
		s.sink.Warn(ctx, w)
	}
}

func cacheKey(channelID string) string {
	return "program:" + norm.NFC.String(strings.TrimSpace(channelID))
}
