// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHolder(t *testing.T, body string) (*Holder, string) {
	t.Helper()
	path := writeConfig(t, body)
	loader := NewLoader(path, "dev")
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewHolder(cfg, loader, path), path
}

func TestHolder_Reload(t *testing.T) {
	h, path := newTestHolder(t, "playback:\n  timeBehindLive: 10s\n")
	assert.Equal(t, int64(10_000), h.TimeBehindLive())

	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	require.NoError(t, os.WriteFile(path, []byte("playback:\n  timeBehindLive: 20s\n  gateTimeout: 2s\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, int64(20_000), h.TimeBehindLive())
	assert.Equal(t, 2*time.Second, h.GateTimeout())
	select {
	case got := <-updates:
		assert.Equal(t, 20*time.Second, got.Playback.TimeBehindLive)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolder_ReloadFailureKeepsCurrent(t *testing.T) {
	h, path := newTestHolder(t, "playback:\n  timeBehindLive: 10s\n")

	require.NoError(t, os.WriteFile(path, []byte("playback:\n  gateTimeout: -1s\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, int64(10_000), h.TimeBehindLive())
}

func TestHolder_FullListenerDoesNotBlock(t *testing.T) {
	h, _ := newTestHolder(t, "")
	full := make(chan AppConfig)
	h.RegisterListener(full)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Reload(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reload blocked on listener")
	}
}

func TestHolder_WatcherReloadsOnWrite(t *testing.T) {
	h, path := newTestHolder(t, "playback:\n  timeBehindLive: 1s\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.Wait()
	}()
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("playback:\n  timeBehindLive: 3s\n"), 0o600))
	assert.Eventually(t, func() bool {
		return h.TimeBehindLive() == 3_000
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHolder_WatcherDisabledWithoutPath(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "dev"), "")
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Wait()
}
