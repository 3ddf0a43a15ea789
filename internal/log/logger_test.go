// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_JSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf, Service: "svc", Version: "v1"})
	t.Cleanup(func() { Configure(Config{}) })

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	L().Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	gateLog := WithComponent("gate")
	gateLog.Warn().Msg("kept")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "svc", entry[FieldService])
	assert.Equal(t, "v1", entry[FieldVersion])
	assert.Equal(t, "gate", entry[FieldComponent])
	assert.Equal(t, "kept", entry["message"])
}

func TestConfigure_Console(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Format: FormatConsole, Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	base := Base()
	base.Info().Str(FieldAssetID, "ch-1").Msg("hello")
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "asset_id=")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestConfigure_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "loud", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	L().Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "timeshift", entry[FieldService])
	_, hasVersion := entry[FieldVersion]
	assert.False(t, hasVersion)
}
