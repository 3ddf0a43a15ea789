// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command startprobe starts one playback session against an exposure backend
// and prints where it would start, and optionally how a seek resolves.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/timeshift/internal/bus"
	"github.com/ManuGH/timeshift/internal/cache"
	"github.com/ManuGH/timeshift/internal/config"
	"github.com/ManuGH/timeshift/internal/control/gate"
	"github.com/ManuGH/timeshift/internal/control/seek"
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/entitlement"
	xglog "github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/programservice"
	"github.com/ManuGH/timeshift/internal/session"
	"github.com/ManuGH/timeshift/internal/source"
	"github.com/ManuGH/timeshift/internal/telemetry"
	"github.com/ManuGH/timeshift/internal/timeline"
	"github.com/ManuGH/timeshift/internal/version"
)

// Report is printed as JSON on stdout.
type Report struct {
	Timestamp   time.Time       `json:"timestamp"`
	BaseURL     string          `json:"baseUrl"`
	Source      *model.Source   `json:"source,omitempty"`
	StartOffset *OffsetReport   `json:"startOffset,omitempty"`
	Seek        *SeekReport     `json:"seek,omitempty"`
	Loads       []loadCall      `json:"loads"`
	EngineSeeks []string        `json:"engineSeeks"`
	Warnings    []WarningReport `json:"warnings"`
	Events      []string        `json:"events"`
	Breaker     string          `json:"breaker"`
	Cache       cache.Stats     `json:"cache"`
	Error       string          `json:"error,omitempty"`
}

type OffsetReport struct {
	Offset   string `json:"offset"`
	Reason   string `json:"reason"`
	Fallback string `json:"fallback,omitempty"`
}

type SeekReport struct {
	Requested int64  `json:"requested"`
	Action    string `json:"action"`
	Target    int64  `json:"target"`
	Reason    string `json:"reason"`
	Gate      string `json:"gate,omitempty"`
	Error     string `json:"error,omitempty"`
}

type WarningReport struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type options struct {
	configPath     string
	baseURL        string
	token          string
	channelID      string
	programID      string
	playFrom       string
	timeRange      string
	positionRange  string
	liveTail       bool
	timeBehindLive time.Duration
	seekTime       int64
	goLive         bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		_, _ = fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("startprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", config.ParseString(config.EnvConfigPath, ""), "path to config file (YAML)")
	fs.StringVar(&o.baseURL, "base-url", "", "override exposure.baseUrl")
	fs.StringVar(&o.token, "token", "", "override exposure.sessionToken")
	fs.StringVar(&o.channelID, "channel", "", "channel id")
	fs.StringVar(&o.programID, "program", "", "program id (requires -channel for gating)")
	fs.StringVar(&o.playFrom, "play-from", "default", "default | beginning | bookmark | time=<ms> | position=<ms>")
	fs.StringVar(&o.timeRange, "time-range", "", "engine seekable time range <start>-<end> in ms")
	fs.StringVar(&o.positionRange, "position-range", "", "engine seekable position range <start>-<end> in ms")
	fs.BoolVar(&o.liveTail, "live-tail", false, "engine reports a growing manifest")
	fs.DurationVar(&o.timeBehindLive, "time-behind-live", -1, "override playback.timeBehindLive")
	fs.Int64Var(&o.seekTime, "seek-time", -1, "seek to this wall-clock ms after start")
	fs.BoolVar(&o.goLive, "go-live", false, "go live after start")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.channelID == "" && o.programID == "" {
		return o, errors.New("one of -channel or -program is required")
	}
	return o, nil
}

func parsePlayFrom(raw string) (model.StartPolicy, error) {
	kind, value, hasValue := strings.Cut(strings.TrimSpace(raw), "=")
	switch strings.ToLower(kind) {
	case "", "default":
		return model.PlayFromDefault(), nil
	case "beginning":
		return model.PlayFromBeginning(), nil
	case "bookmark":
		return model.PlayFromBookmark(), nil
	case "time", "position":
		if !hasValue {
			return model.StartPolicy{}, fmt.Errorf("play-from %s needs a value", kind)
		}
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return model.StartPolicy{}, fmt.Errorf("play-from %s: %w", kind, err)
		}
		if kind == "time" {
			return model.PlayFromTime(v), nil
		}
		return model.PlayFromPosition(v), nil
	}
	return model.StartPolicy{}, fmt.Errorf("unknown play-from %q", raw)
}

// parseRange reads "<start>-<end>". Empty input means no range reported.
func parseRange(raw string) ([]timeline.Range, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	start, end, ok := strings.Cut(raw, "-")
	if !ok {
		return nil, fmt.Errorf("range %q: want <start>-<end>", raw)
	}
	s, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("range %q: %w", raw, err)
	}
	e, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("range %q: %w", raw, err)
	}
	r := timeline.Range{Start: s, End: e}
	if !r.Valid() {
		return nil, fmt.Errorf("range %q: start after end", raw)
	}
	return []timeline.Range{r}, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	policy, err := parsePlayFrom(opts.playFrom)
	if err != nil {
		return err
	}
	timeRanges, err := parseRange(opts.timeRange)
	if err != nil {
		return err
	}
	positionRanges, err := parseRange(opts.positionRange)
	if err != nil {
		return err
	}

	xglog.Configure(xglog.Config{Level: "warn", Output: stderr, Service: "startprobe", Version: version.Version})

	loader := config.NewLoader(opts.configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if opts.baseURL != "" {
		cfg.Exposure.BaseURL = opts.baseURL
	}
	if opts.token != "" {
		cfg.Exposure.SessionToken = opts.token
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: stderr, Service: "startprobe", Version: version.Version})
	logger := xglog.WithComponent("startprobe")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "startprobe",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	client := entitlement.NewClient(cfg.Exposure.BaseURL, entitlement.Options{
		Timeout:          cfg.Exposure.Timeout,
		MaxRetries:       cfg.Exposure.MaxRetries,
		SessionToken:     cfg.Exposure.SessionToken,
		UserAgent:        version.UserAgent("startprobe"),
		RateLimit:        rate.Limit(cfg.Exposure.RateLimit),
		RateLimitBurst:   cfg.Exposure.RateBurst,
		BreakerThreshold: cfg.Exposure.BreakerThreshold,
		BreakerReset:     cfg.Exposure.BreakerReset,
	})

	programCache, err := cache.New(ctx, cfg.Cache.Backend, cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("open program cache: %w", err)
	}
	defer func() { _ = programCache.Close() }()

	events := bus.NewMemoryBusWithBuffer(128)
	collect := newCollector(ctx, events)

	programs := programservice.New(client, programservice.Options{
		Cache: programCache,
		TTL:   cfg.Cache.TTL,
		Sink:  collect,
	})

	holder := config.NewHolder(cfg, loader, opts.configPath)
	tbl := holder.TimeBehindLive
	if opts.timeBehindLive >= 0 {
		override := opts.timeBehindLive.Milliseconds()
		tbl = func() int64 { return override }
	}

	engine := &probeEngine{timeRanges: timeRanges, positionRanges: positionRanges, liveTail: opts.liveTail}
	sess := session.New(session.Config{
		Engine:         engine,
		Provider:       client,
		Programs:       programs,
		Bus:            events,
		TimeBehindLive: tbl,
		GateTimeout:    holder.GateTimeout,
	})

	report := Report{Timestamp: time.Now().UTC(), BaseURL: cfg.Exposure.BaseURL}

	var playable source.Playable = source.ChannelPlayable{ChannelID: opts.channelID}
	if opts.programID != "" {
		playable = source.ProgramPlayable{ProgramID: opts.programID, ChannelID: opts.channelID}
	}

	dec, startErr := sess.Start(ctx, playable, model.PlaybackProperties{PlayFrom: policy})
	if startErr != nil {
		report.Error = startErr.Error()
	} else {
		report.StartOffset = &OffsetReport{
			Offset:   dec.Offset.String(),
			Reason:   string(dec.Reason),
			Fallback: string(dec.Fallback),
		}
		if opts.seekTime >= 0 {
			report.Seek = probeSeek(ctx, sess, opts.seekTime, holder.GateTimeout(), false)
		} else if opts.goLive {
			report.Seek = probeSeek(ctx, sess, 0, holder.GateTimeout(), true)
		}
	}
	if src, ok := sess.Source(); ok {
		report.Source = &src
	}
	sess.Stop(ctx)

	report.Warnings, report.Events = collect.drain()
	report.Loads, report.EngineSeeks, _ = engine.snapshot()
	report.Breaker = string(client.BreakerState())
	report.Cache = programCache.Stats()

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return startErr
}

// probeSeek issues the seek and waits for the gate, bounded by the gate
// timeout plus a second.
func probeSeek(ctx context.Context, sess *session.Session, ts int64, gateTimeout time.Duration, live bool) *SeekReport {
	var (
		res seek.Result
		err error
	)
	if live {
		res, err = sess.GoLive(ctx)
	} else {
		res, err = sess.SeekToTime(ctx, ts)
	}
	out := &SeekReport{
		Requested: ts,
		Action:    string(res.Action),
		Target:    res.Target,
		Reason:    string(res.Reason),
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if res.Pending == nil {
		return out
	}
	waitCtx, cancel := context.WithTimeout(ctx, gateTimeout+time.Second)
	defer cancel()
	outcome, err := res.Pending.Wait(waitCtx)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Gate = string(outcome.Result)
	if outcome.Result != gate.Granted && outcome.Err != nil {
		out.Error = outcome.Err.Error()
	}
	return out
}
