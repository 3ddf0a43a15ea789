// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session runs one playback: it acquires the source, resolves the
// start offset, loads the engine and routes seeks through the entitlement
// gate. Calls are expected from a single control goroutine; the mutex only
// guards state that gate callbacks touch.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/timeshift/internal/control/gate"
	"github.com/ManuGH/timeshift/internal/control/seek"
	"github.com/ManuGH/timeshift/internal/control/startoffset"
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	xglog "github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/metrics"
	"github.com/ManuGH/timeshift/internal/source"
)

var (
	ErrNotPlaying       = errors.New("session: not playing")
	ErrNotEntitled      = errors.New("session: not entitled to play instant")
	ErrNoProgramService = errors.New("session: no program service for reroute")
	ErrNoEngine         = errors.New("session: no engine")
)

type Config struct {
	// ID defaults to a random UUID.
	ID       string
	Engine   ports.Engine
	Provider ports.EntitlementProvider
	// Programs backs the entitlement gate and reroutes. Without it seeks are
	// not gated and out-of-window seeks fail.
	Programs ports.ProgramService
	Bus      ports.Bus

	// TimeBehindLive overrides the per-start property when set. It is read on
	// every seek.
	TimeBehindLive func() int64
	GateTimeout    func() time.Duration

	Logger *zerolog.Logger
}

// Session is one playback of one playable at a time.
type Session struct {
	id       string
	engine   ports.Engine
	provider ports.EntitlementProvider
	programs ports.ProgramService
	bus      ports.Bus
	tblFn    func() int64
	timeout  func() time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	state    model.SessionState
	source   model.Source
	tbl      int64
	gate     *gate.Gate
	resolver *seek.Resolver
	waiters  sync.WaitGroup
}

var (
	_ ports.Rerouter    = (*Session)(nil)
	_ ports.WarningSink = (*Session)(nil)
)

func New(cfg Config) *Session {
	s := &Session{
		id:       cfg.ID,
		engine:   cfg.Engine,
		provider: cfg.Provider,
		programs: cfg.Programs,
		bus:      cfg.Bus,
		tblFn:    cfg.TimeBehindLive,
		timeout:  cfg.GateTimeout,
		state:    model.SessionNew,
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	} else {
		s.logger = xglog.WithComponent("session")
	}
	s.logger = s.logger.With().Str(xglog.FieldSessionID, s.id).Logger()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Source returns the loaded source, if any.
func (s *Session) Source() (model.Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source, s.resolver != nil
}

// Start acquires playable's source and loads it at the offset props resolve
// to. Acquisition and load failures are terminal.
func (s *Session) Start(ctx context.Context, playable source.Playable, props model.PlaybackProperties) (startoffset.Decision, error) {
	if s.engine == nil {
		return startoffset.Decision{}, ErrNoEngine
	}
	ctx = xglog.ContextWithSessionID(ctx, s.id)
	s.setState(model.SessionStarting)
	s.mu.Lock()
	s.tbl = props.TimeBehindLiveMs
	s.mu.Unlock()

	kind := string(playable.Kind())
	started := time.Now()
	metrics.IncPlaybackStart(kind)

	src, err := playable.PrepareSource(ctx, s.provider)
	if err != nil {
		metrics.IncPlaybackError(kind, "acquire")
		metrics.ObservePlaybackStart(kind, startOutcome(ctx), time.Since(started))
		s.fail(ctx, err)
		return startoffset.Decision{}, err
	}
	dec := startoffset.Resolve(startoffset.Input{
		Kind:           src.Kind,
		Policy:         props.PlayFrom,
		Entitlement:    src.Entitlement,
		PositionRanges: s.engine.SeekablePositionRanges(),
		TimeRanges:     s.engine.SeekableTimeRanges(),
	})
	err = s.load(ctx, src, props.PlayFrom, dec, model.EventStarted)
	if err != nil {
		metrics.ObservePlaybackStart(kind, startOutcome(ctx), time.Since(started))
		return dec, err
	}
	metrics.ObservePlaybackStart(kind, "ok", time.Since(started))
	return dec, nil
}

func startOutcome(ctx context.Context) string {
	if ctx.Err() != nil {
		return "aborted"
	}
	return "failed"
}

// rerouteDecision starts a rerouted source at the instant the seek resolver
// already chose. The engine ranges still describe the previous manifest, so
// the start table's range check does not apply.
func rerouteDecision(src model.Source, ts int64) startoffset.Decision {
	if src.IsUnifiedPackager() {
		return startoffset.Decision{Offset: model.ByTime(ts), Reason: startoffset.ReasonCustomTime}
	}
	return startoffset.Resolve(startoffset.Input{Kind: src.Kind, Policy: model.PlayFromDefault(), Entitlement: src.Entitlement})
}

func (s *Session) load(ctx context.Context, src model.Source, policy model.StartPolicy, dec startoffset.Decision, event model.SessionEventType) error {
	metrics.RecordStartOffset(string(policy.Kind), string(dec.Offset.Kind), string(dec.Reason))

	log := xglog.WithContext(ctx, s.logger)
	log.Info().
		Str(xglog.FieldEvent, "session.start_offset").
		Str(xglog.FieldAssetID, src.AssetID).
		Str(xglog.FieldPolicy, policy.String()).
		Str("offset", dec.Offset.String()).
		Str(xglog.FieldReason, string(dec.Reason)).
		Str("fallback", string(dec.Fallback)).
		Msg("start offset resolved")

	g := s.newGate(src)
	resolver := seek.NewResolver(seek.Config{
		Engine:         s.engine,
		Source:         src,
		Gate:           g,
		Rerouter:       s,
		Sink:           s,
		TimeBehindLive: s.timeBehindLive,
		Logger:         &s.logger,
	})

	s.mu.Lock()
	old := s.gate
	s.gate, s.resolver, s.source = g, resolver, src
	s.mu.Unlock()
	// Close outside the lock: it waits for the running check, whose failure
	// handler takes the lock.
	old.Close()

	if err := s.engine.Load(ctx, src, dec.Offset); err != nil {
		err = fmt.Errorf("load %s: %w", src.AssetID, err)
		metrics.IncPlaybackError(string(src.Kind), "load")
		s.fail(ctx, err)
		return err
	}
	s.setState(model.SessionPlaying)
	s.publish(ctx, model.TopicSession, model.SessionEvent{Type: event, SessionID: s.id, AssetID: src.AssetID, OffsetMs: dec.Offset.Value})
	return nil
}

func (s *Session) newGate(src model.Source) *gate.Gate {
	if s.programs == nil {
		return gate.New(nil)
	}
	channelID := src.ProgramServiceChannelID()
	checker := ports.EntitlementCheckerFunc(func(ctx context.Context, instant int64) (model.Verdict, error) {
		return s.programs.IsEntitled(ctx, channelID, instant)
	})

	var g *gate.Gate
	opts := []gate.Option{
		gate.WithLogger(s.logger.With().Str(xglog.FieldComponent, "gate").Logger()),
		gate.WithFailureHandler(func(out gate.Outcome) { s.onGateFailure(g, out) }),
	}
	if s.timeout != nil {
		opts = append(opts, gate.WithTimeout(s.timeout()))
	}
	g = gate.New(checker, opts...)
	return g
}

// onGateFailure stops playback when the current gate rejects a seek. Reports
// from a gate that was already replaced are ignored.
func (s *Session) onGateFailure(g *gate.Gate, out gate.Outcome) {
	s.mu.Lock()
	if s.gate != g || s.state != model.SessionPlaying {
		s.mu.Unlock()
		return
	}
	s.state = model.SessionStopped
	assetID, kind := s.source.AssetID, s.source.Kind
	s.mu.Unlock()

	err := out.Err
	switch out.Result {
	case gate.Denied:
		err = fmt.Errorf("%w %d: %s", ErrNotEntitled, out.Instant, out.Verdict.Reason)
	case gate.TimedOut:
		if err == nil {
			err = gate.ErrGateTimeout
		}
	}

	metrics.IncPlaybackError(string(kind), "gate")
	s.engine.Stop()
	s.logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "session.stopped").
		Str(xglog.FieldReason, string(out.Result)).
		Int64(xglog.FieldRequestedMs, out.Instant).
		Msg("playback stopped by entitlement gate")
	s.publish(context.Background(), model.TopicSession, model.SessionEvent{Type: model.EventError, SessionID: s.id, AssetID: assetID, OffsetMs: out.Instant, Err: err})
}

// SeekToTime seeks to wall-clock ts.
func (s *Session) SeekToTime(ctx context.Context, ts int64) (seek.Result, error) {
	return s.seek(ctx, func(ctx context.Context, r *seek.Resolver) (seek.Result, error) { return r.SeekToTime(ctx, ts) })
}

// SeekToPosition seeks to a stream-relative position.
func (s *Session) SeekToPosition(ctx context.Context, position int64) (seek.Result, error) {
	return s.seek(ctx, func(ctx context.Context, r *seek.Resolver) (seek.Result, error) { return r.SeekToPosition(ctx, position) })
}

// GoLive seeks to the live edge.
func (s *Session) GoLive(ctx context.Context) (seek.Result, error) {
	return s.seek(ctx, func(ctx context.Context, r *seek.Resolver) (seek.Result, error) { return r.GoLive(ctx) })
}

func (s *Session) seek(ctx context.Context, do func(context.Context, *seek.Resolver) (seek.Result, error)) (seek.Result, error) {
	s.mu.Lock()
	r, state := s.resolver, s.state
	s.mu.Unlock()
	if r == nil || state != model.SessionPlaying {
		return seek.Result{}, ErrNotPlaying
	}

	// Gate checks outlive the request; only a newer seek or Stop ends them.
	ctx = context.WithoutCancel(xglog.ContextWithSessionID(ctx, s.id))
	res, err := do(ctx, r)
	if err != nil {
		return res, err
	}
	if res.Pending != nil {
		s.waiters.Add(1)
		go s.awaitSeek(ctx, res)
	}
	return res, nil
}

func (s *Session) awaitSeek(ctx context.Context, res seek.Result) {
	defer s.waiters.Done()
	<-res.Pending.Done()
	out, _ := res.Pending.Outcome()
	if out.Result != gate.Granted {
		return
	}
	src, _ := s.Source()
	s.publish(ctx, model.TopicSession, model.SessionEvent{Type: model.EventSeeked, SessionID: s.id, AssetID: src.AssetID, OffsetMs: res.Target})
}

// RerouteToInstant loads the program airing at ts on the current channel and
// starts it at ts.
func (s *Session) RerouteToInstant(ctx context.Context, ts int64) error {
	if s.programs == nil {
		return ErrNoProgramService
	}
	current, _ := s.Source()
	channelID := current.ProgramServiceChannelID()

	p, err := s.programs.ProgramAt(ctx, channelID, ts)
	if err != nil {
		return fmt.Errorf("lookup program at %d: %w", ts, err)
	}
	assetID := p.AssetID
	if assetID == "" {
		assetID = p.ProgramID
	}

	log := xglog.WithContext(ctx, s.logger)
	log.Info().
		Str(xglog.FieldEvent, "session.reroute").
		Str(xglog.FieldChannelID, channelID).
		Str(xglog.FieldProgramID, p.ProgramID).
		Int64(xglog.FieldRequestedMs, ts).
		Msg("rerouting to program")

	src, err := source.ProgramPlayable{ProgramID: assetID, ChannelID: channelID}.PrepareSource(ctx, s.provider)
	if err != nil {
		metrics.IncPlaybackError(string(model.StreamProgram), "reroute")
		return err
	}
	return s.load(ctx, src, model.PlayFromTime(ts), rerouteDecision(src, ts), model.EventReloaded)
}

// Warn publishes w on the warning topic.
func (s *Session) Warn(ctx context.Context, w model.Warning) {
	s.publish(ctx, model.TopicWarning, w)
}

// Stop stops the engine and cancels any pending gate check. It is safe to
// call more than once.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return
	}
	s.state = model.SessionStopped
	g := s.gate
	assetID := s.source.AssetID
	s.mu.Unlock()

	g.Close()
	s.waiters.Wait()
	if s.engine != nil {
		s.engine.Stop()
	}
	s.publish(ctx, model.TopicSession, model.SessionEvent{Type: model.EventStopped, SessionID: s.id, AssetID: assetID})
}

func (s *Session) timeBehindLive() int64 {
	if s.tblFn != nil {
		return s.tblFn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tbl
}

func (s *Session) setState(state model.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.state
	s.state = state
	if old != state {
		s.logger.Debug().
			Str(xglog.FieldEvent, "session.state").
			Str(xglog.FieldOldState, string(old)).
			Str(xglog.FieldNewState, string(state)).
			Msg("session state changed")
	}
}

func (s *Session) fail(ctx context.Context, err error) {
	s.setState(model.SessionFailed)
	log := xglog.WithContext(ctx, s.logger)
	log.Error().Err(err).Str(xglog.FieldEvent, "session.failed").Msg("session failed")
	src, _ := s.Source()
	s.publish(ctx, model.TopicSession, model.SessionEvent{Type: model.EventError, SessionID: s.id, AssetID: src.AssetID, Err: err})
}

func (s *Session) publish(ctx context.Context, topic string, event any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, topic, event); err != nil {
		s.logger.Debug().Err(err).Str("topic", topic).Msg("publish failed")
	}
}
