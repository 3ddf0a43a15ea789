// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/timeshift/internal/config"
	xglog "github.com/ManuGH/timeshift/internal/log"
)

// App runs the HTTP manager together with config hot reload: file watching,
// SIGHUP and the onReload callback.
type App struct {
	logger   zerolog.Logger
	manager  *Manager
	holder   *config.Holder
	onReload func(config.AppConfig)
	reloadOn os.Signal
}

// NewApp wires the app. holder and onReload may be nil.
func NewApp(logger zerolog.Logger, manager *Manager, holder *config.Holder, onReload func(config.AppConfig)) *App {
	return &App{
		logger:   logger,
		manager:  manager,
		holder:   holder,
		onReload: onReload,
		reloadOn: syscall.SIGHUP,
	}
}

// Run blocks until ctx is cancelled or the server fails, then waits for the
// config watcher to exit.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.holder != nil {
		// A broken watcher only costs hot reload.
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config watcher not started")
		}
		if a.onReload != nil {
			updates := make(chan config.AppConfig, 1)
			a.holder.RegisterListener(updates)
			g.Go(func() error { return a.applyReloads(ctx, updates) })
		}
		if a.reloadOn != nil {
			g.Go(func() error { return a.reloadOnSignal(ctx) })
		}
	}
	g.Go(func() error { return a.manager.Start(ctx) })

	err := g.Wait()
	if a.holder != nil {
		a.holder.Wait()
	}
	return err
}

func (a *App) applyReloads(ctx context.Context, updates <-chan config.AppConfig) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-updates:
			a.onReload(cfg)
		}
	}
}

func (a *App) reloadOnSignal(ctx context.Context) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, a.reloadOn)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			a.logger.Info().
				Str(xglog.FieldEvent, "config.reload_signal").
				Str("signal", a.reloadOn.String()).
				Msg("reloading config")
			if err := a.holder.Reload(ctx); err != nil {
				a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed, keeping current")
			}
		}
	}
}
