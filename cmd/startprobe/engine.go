// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"sync"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/timeline"
)

// probeEngine stands in for a media engine. Its seekable ranges are fixed by
// flags and every call is recorded for the report. Seeks arrive from gate
// goroutines.
type probeEngine struct {
	timeRanges     []timeline.Range
	positionRanges []timeline.Range
	liveTail       bool

	mu           sync.Mutex
	loads        []loadCall
	seeks        []string
	playheadTime *int64
	playheadPos  *int64
	stopped      bool
}

type loadCall struct {
	AssetID string `json:"assetId"`
	Offset  string `json:"offset"`
}

func (e *probeEngine) SeekableTimeRanges() []timeline.Range     { return e.timeRanges }
func (e *probeEngine) SeekablePositionRanges() []timeline.Range { return e.positionRanges }
func (e *probeEngine) IsLiveTail() bool                         { return e.liveTail }

func (e *probeEngine) PlayheadTime() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playheadTime == nil {
		return 0, false
	}
	return *e.playheadTime, true
}

func (e *probeEngine) PlayheadPosition() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playheadPos == nil {
		return 0, false
	}
	return *e.playheadPos, true
}

func (e *probeEngine) SeekToTime(ts int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seeks = append(e.seeks, model.ByTime(ts).String())
	e.playheadTime = &ts
}

func (e *probeEngine) SeekToPosition(position int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seeks = append(e.seeks, model.ByPosition(position).String())
	e.playheadPos = &position
}

func (e *probeEngine) Load(_ context.Context, src model.Source, offset model.StartOffset) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads = append(e.loads, loadCall{AssetID: src.AssetID, Offset: offset.String()})
	if ts, ok := offset.Time(); ok {
		e.playheadTime = &ts
	}
	if pos, ok := offset.Position(); ok {
		e.playheadPos = &pos
	}
	return nil
}

func (e *probeEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

func (e *probeEngine) snapshot() (loads []loadCall, seeks []string, stopped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]loadCall(nil), e.loads...), append([]string(nil), e.seeks...), e.stopped
}
