// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command daemon serves the exposure backend simulator: entitlements, EPG
// lookups and bookmarks, plus metrics and health.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ManuGH/timeshift/internal/config"
	"github.com/ManuGH/timeshift/internal/control/middleware"
	"github.com/ManuGH/timeshift/internal/daemon"
	"github.com/ManuGH/timeshift/internal/exposuresim"
	"github.com/ManuGH/timeshift/internal/health"
	xglog "github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/resume"
	"github.com/ManuGH/timeshift/internal/telemetry"
	"github.com/ManuGH/timeshift/internal/version"
)

const serviceName = "timeshiftd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger := xglog.WithComponent("daemon")
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "daemon.failed").
			Msg("daemon failed")
	}
}

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stdout)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", config.ParseString(config.EnvConfigPath, ""), "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return nil
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version.Version})
	logger := xglog.WithComponent("daemon")

	path := strings.TrimSpace(*configPath)
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration from %q: %w", path, err)
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: serviceName, Version: cfg.Version})
	logger = xglog.WithComponent("daemon")
	for _, key := range loader.UnknownEnvKeys(os.Environ()) {
		logger.Warn().Str("key", key).Msg("ignoring unknown environment variable")
	}

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("loaded configuration")

	if err := health.PerformStartupChecks(cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	store, err := resume.NewStore(ctx, cfg.Resume.Backend, cfg.Resume.Dir)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("open resume store: %w", err)
	}

	catalog := &exposuresim.Catalog{}
	if cfg.Simulator.CatalogPath != "" {
		catalog, err = exposuresim.LoadCatalog(cfg.Simulator.CatalogPath)
		if err != nil {
			_ = store.Close()
			_ = tp.Shutdown(ctx)
			return err
		}
	} else {
		logger.Warn().Str(xglog.FieldEvent, "catalog.empty").Msg("no catalog configured, every asset is unknown")
	}

	stack := middleware.StackConfig{
		EnableMetrics:     true,
		EnableLogging:     true,
		RateLimitRequests: cfg.Simulator.RateLimitRequests,
		RateLimitWindow:   cfg.Simulator.RateLimitWindow,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = cfg.Telemetry.ServiceName
	}
	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewFileChecker("catalog_file", cfg.Simulator.CatalogPath))
	srv := exposuresim.New(catalog, store, exposuresim.Options{
		Stack:        stack,
		RequireToken: cfg.Simulator.RequireToken,
		Health:       hm,
	})

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.ListenAddr), srv, logger)
	if err != nil {
		_ = store.Close()
		_ = tp.Shutdown(ctx)
		return err
	}
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("resume_store", func(context.Context) error { return store.Close() })

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.ListenAddr).
		Int("channels", len(catalog.Channels)).
		Int("programs", len(catalog.Programs)).
		Str("resume_backend", cfg.Resume.Backend).
		Bool("require_token", cfg.Simulator.RequireToken).
		Msg("starting timeshift backend simulator")
	logger.Info().Msgf("→ Exposure base URL for clients: %s", maskURL(cfg.Exposure.BaseURL))

	holder := config.NewHolder(cfg, loader, path)
	app := daemon.NewApp(logger, mgr, holder, applyLogLevel)
	if err := app.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("server exiting")
	return nil
}

// applyLogLevel is the only reloadable daemon setting; the rest needs a
// restart.
func applyLogLevel(cfg config.AppConfig) {
	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}
