// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package seek

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timeshift/internal/control/gate"
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	"github.com/ManuGH/timeshift/internal/timeline"
)

type fakeEngine struct {
	mu            sync.Mutex
	timeRanges    []timeline.Range
	posRanges     []timeline.Range
	playheadTime  *int64
	playheadPos   *int64
	liveTail      bool
	timeSeeks     []int64
	positionSeeks []int64
}

func (e *fakeEngine) SeekableTimeRanges() []timeline.Range     { return e.timeRanges }
func (e *fakeEngine) SeekablePositionRanges() []timeline.Range { return e.posRanges }
func (e *fakeEngine) IsLiveTail() bool                         { return e.liveTail }

func (e *fakeEngine) PlayheadTime() (int64, bool) {
	if e.playheadTime == nil {
		return 0, false
	}
	return *e.playheadTime, true
}

func (e *fakeEngine) PlayheadPosition() (int64, bool) {
	if e.playheadPos == nil {
		return 0, false
	}
	return *e.playheadPos, true
}

func (e *fakeEngine) SeekToTime(ts int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeSeeks = append(e.timeSeeks, ts)
}

func (e *fakeEngine) SeekToPosition(p int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positionSeeks = append(e.positionSeeks, p)
}

func (e *fakeEngine) seeks() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.timeSeeks...)
}

type recordingRerouter struct {
	instants []int64
	err      error
}

func (r *recordingRerouter) RerouteToInstant(_ context.Context, ts int64) error {
	r.instants = append(r.instants, ts)
	return r.err
}

type warnings struct {
	mu   sync.Mutex
	list []model.Warning
}

func (w *warnings) Warn(_ context.Context, warning model.Warning) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.list = append(w.list, warning)
}

func (w *warnings) kinds() []model.WarningKind {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.WarningKind, 0, len(w.list))
	for _, x := range w.list {
		out = append(out, x.Kind)
	}
	return out
}

func ptr(v int64) *int64 { return &v }

func channelSource() model.Source {
	return model.Source{
		Kind:           model.StreamChannel,
		AssetID:        "ch1",
		Classification: model.AlwaysLive,
		Entitlement:    model.Entitlement{MediaLocator: "file://play/.isml", Live: true},
	}
}

func programSource(locator string) model.Source {
	return model.Source{
		Kind:           model.StreamProgram,
		AssetID:        "p1",
		ChannelID:      "ch1",
		Classification: model.OnDemand,
		Entitlement:    model.Entitlement{MediaLocator: locator},
	}
}

func waitOutcome(t *testing.T, p *gate.Pending) gate.Outcome {
	t.Helper()
	require.NotNil(t, p)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := p.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestResolver_InRangeSeeksImmediatelyWithoutChecker(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(1000, 5000)}
	r := NewResolver(Config{Engine: engine, Source: channelSource()})

	res, err := r.SeekToTime(context.Background(), 3000)
	require.NoError(t, err)
	assert.Equal(t, ActionSeek, res.Action)
	assert.Equal(t, []int64{3000}, engine.seeks())
}

func TestResolver_SeekWaitsForGrant(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(1000, 5000)}
	release := make(chan struct{})
	g := gate.New(ports.EntitlementCheckerFunc(func(ctx context.Context, _ int64) (model.Verdict, error) {
		select {
		case <-release:
			return model.Granted("p1"), nil
		case <-ctx.Done():
			return model.Verdict{}, ctx.Err()
		}
	}))
	defer g.Close()
	r := NewResolver(Config{Engine: engine, Source: channelSource(), Gate: g})

	res, err := r.SeekToTime(context.Background(), 3000)
	require.NoError(t, err)
	assert.Empty(t, engine.seeks(), "no seek before the grant")

	close(release)
	assert.Equal(t, gate.Granted, waitOutcome(t, res.Pending).Result)
	assert.Equal(t, []int64{3000}, engine.seeks())
}

func TestResolver_DeniedSeekNeverReachesEngine(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(1000, 5000)}
	g := gate.New(ports.EntitlementCheckerFunc(func(context.Context, int64) (model.Verdict, error) {
		return model.Denied("BLACKOUT"), nil
	}))
	defer g.Close()
	r := NewResolver(Config{Engine: engine, Source: channelSource(), Gate: g})

	res, err := r.SeekToTime(context.Background(), 3000)
	require.NoError(t, err)
	assert.Equal(t, gate.Denied, waitOutcome(t, res.Pending).Result)
	assert.Empty(t, engine.seeks())
}

func TestResolver_GoLiveWithinDeltaSeeksToEdge(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(0, 10000)}
	var checked int64
	g := gate.New(ports.EntitlementCheckerFunc(func(_ context.Context, instant int64) (model.Verdict, error) {
		checked = instant
		return model.Granted(""), nil
	}))
	defer g.Close()
	r := NewResolver(Config{
		Engine:         engine,
		Source:         channelSource(),
		Gate:           g,
		TimeBehindLive: func() int64 { return 500 },
	})

	res, err := r.SeekToTime(context.Background(), 10300)
	require.NoError(t, err)
	assert.Equal(t, ActionGoLive, res.Action)
	waitOutcome(t, res.Pending)
	assert.Equal(t, int64(10000), checked, "the gate checks the live edge, not the request")
	assert.Equal(t, []int64{10000}, engine.seeks())
}

func TestResolver_BeyondLivePointWarns(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(0, 10000)}
	sink := &warnings{}
	r := NewResolver(Config{Engine: engine, Source: channelSource(), Sink: sink, TimeBehindLive: func() int64 { return 500 }})

	res, err := r.SeekToTime(context.Background(), 10600)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Nil(t, res.Pending)
	assert.Empty(t, engine.seeks())
	assert.Equal(t, []model.WarningKind{model.WarnSeekBeyondLivePoint}, sink.kinds())
}

func TestResolver_ChannelBeforeWindowReroutes(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(1000, 5000)}
	rr := &recordingRerouter{}
	r := NewResolver(Config{Engine: engine, Source: channelSource(), Rerouter: rr})

	res, err := r.SeekToTime(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, ActionReroute, res.Action)
	assert.Equal(t, []int64{200}, rr.instants)
	assert.Empty(t, engine.seeks(), "never clamps to the window start")
}

func TestResolver_OnDemandProgramBeyondWindowReroutes(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(0, 6000), liveTail: false}
	rr := &recordingRerouter{}
	sink := &warnings{}
	r := NewResolver(Config{Engine: engine, Source: programSource("file://play/.isml"), Rerouter: rr, Sink: sink})

	res, err := r.SeekToTime(context.Background(), 9000)
	require.NoError(t, err)
	assert.Equal(t, ActionReroute, res.Action)
	assert.Equal(t, []int64{9000}, rr.instants)
	assert.Empty(t, sink.kinds())
}

func TestResolver_LiveTailProgramBeyondWindowWarns(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(0, 6000), liveTail: true}
	sink := &warnings{}
	r := NewResolver(Config{Engine: engine, Source: programSource("file://play/.isml"), Sink: sink})

	res, err := r.SeekToTime(context.Background(), 9000)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, []model.WarningKind{model.WarnSeekBeyondLivePoint}, sink.kinds())
}

func TestResolver_RerouteErrorPropagates(t *testing.T) {
	boom := errors.New("lookup failed")
	engine := &fakeEngine{timeRanges: window(1000, 5000)}
	r := NewResolver(Config{Engine: engine, Source: channelSource(), Rerouter: &recordingRerouter{err: boom}})

	_, err := r.SeekToTime(context.Background(), 200)
	assert.ErrorIs(t, err, boom)
}

func TestResolver_RerouteWithoutRerouter(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(1000, 5000)}
	r := NewResolver(Config{Engine: engine, Source: channelSource()})

	_, err := r.SeekToTime(context.Background(), 200)
	assert.ErrorIs(t, err, ErrNoRerouter)
}

func TestResolver_NoSeekableRangeWarns(t *testing.T) {
	engine := &fakeEngine{}
	sink := &warnings{}
	r := NewResolver(Config{Engine: engine, Source: channelSource(), Sink: sink})

	res, err := r.SeekToTime(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, []model.WarningKind{model.WarnNoSeekableRange}, sink.kinds())
}

func TestResolver_TimeSeekOnLegacySource(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(0, 6000)}
	sink := &warnings{}
	r := NewResolver(Config{Engine: engine, Source: programSource("file://old/pipe"), Sink: sink})

	res, err := r.SeekToTime(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, ReasonNotTimeBased, res.Reason)
	require.Equal(t, []model.WarningKind{model.WarnTimeSeekInNonTimeBased}, sink.kinds())
	sink.mu.Lock()
	w := sink.list[0]
	sink.mu.Unlock()
	assert.Equal(t, model.TimeSeekInNonTimeBasedSource(100), w)
	assert.Equal(t, "SEEK_TIME_IN_NON_TIME_BASED_SOURCE", w.Code())
	assert.Equal(t, int64(100), w.Requested)
	assert.Empty(t, engine.seeks())
}

func TestResolver_PositionSeekWithoutReferenceIsNoop(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(0, 6000)}
	sink := &warnings{}
	r := NewResolver(Config{Engine: engine, Source: channelSource(), Sink: sink})

	res, err := r.SeekToPosition(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoReference, res.Reason)
	assert.Equal(t, []model.WarningKind{model.WarnNoReferencePoint}, sink.kinds())
	assert.Empty(t, engine.seeks())
}

func TestResolver_PositionSeekConvertsToTime(t *testing.T) {
	engine := &fakeEngine{
		timeRanges:   window(100000, 200000),
		playheadTime: ptr(150000),
		playheadPos:  ptr(50000),
	}
	r := NewResolver(Config{Engine: engine, Source: channelSource()})

	res, err := r.SeekToPosition(context.Background(), 60000)
	require.NoError(t, err)
	assert.Equal(t, ActionSeek, res.Action)
	assert.Equal(t, []int64{160000}, engine.seeks())
}

func TestResolver_LegacyPositionSeekUsesPositions(t *testing.T) {
	engine := &fakeEngine{
		posRanges:    window(0, 60000),
		playheadTime: ptr(150000),
		playheadPos:  ptr(50000),
	}
	var checked int64
	g := gate.New(ports.EntitlementCheckerFunc(func(_ context.Context, instant int64) (model.Verdict, error) {
		checked = instant
		return model.Granted(""), nil
	}))
	defer g.Close()
	r := NewResolver(Config{Engine: engine, Source: programSource("file://old/pipe"), Gate: g})

	res, err := r.SeekToPosition(context.Background(), 30000)
	require.NoError(t, err)
	waitOutcome(t, res.Pending)

	assert.Equal(t, int64(130000), checked)
	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, []int64{30000}, engine.positionSeeks)
	assert.Empty(t, engine.timeSeeks)
}

func TestResolver_GoLive(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(1000, 5000)}
	r := NewResolver(Config{Engine: engine, Source: channelSource()})

	res, err := r.GoLive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionGoLive, res.Action)
	assert.Equal(t, []int64{5000}, engine.seeks())
}

func TestResolver_GoLiveWithoutRange(t *testing.T) {
	sink := &warnings{}
	r := NewResolver(Config{Engine: &fakeEngine{}, Source: channelSource(), Sink: sink})

	res, err := r.GoLive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, []model.WarningKind{model.WarnNoSeekableRange}, sink.kinds())
}

func TestResolver_ReadsRangesAtCallTime(t *testing.T) {
	engine := &fakeEngine{timeRanges: window(0, 1000)}
	r := NewResolver(Config{Engine: engine, Source: channelSource()})

	res, err := r.SeekToTime(context.Background(), 2000)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)

	engine.timeRanges = window(0, 3000)
	res, err = r.SeekToTime(context.Background(), 2000)
	require.NoError(t, err)
	assert.Equal(t, ActionSeek, res.Action)
}
