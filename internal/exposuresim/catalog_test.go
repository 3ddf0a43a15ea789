// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package exposuresim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog("testdata/catalog.yaml")
	require.NoError(t, err)
	require.Len(t, cat.Channels, 2)
	require.Len(t, cat.Programs, 3)

	// Sorted by channel and start.
	assert.Equal(t, "p-morning", cat.Programs[0].ID)

	p, ok := cat.programAt("ch-1", 3600000)
	require.True(t, ok)
	assert.Equal(t, "p-news", p.ID)

	_, ok = cat.programAt("ch-1", 8000000)
	assert.False(t, ok, "gap between news and film")
}

func TestParseCatalog_RejectsUnknownFields(t *testing.T) {
	_, err := ParseCatalog([]byte("channels:\n  - id: a\n    mediaLocator: x\n    color: red\n"))
	assert.Error(t, err)
}

func TestParseCatalog_Validation(t *testing.T) {
	_, err := ParseCatalog([]byte(`
channels:
  - id: a
    mediaLocator: x
  - id: a
programs:
  - id: p
    channelId: missing
    start: 10
    end: 5
`))
	require.Error(t, err)
	for _, want := range []string{"duplicate id", "unknown channel", "end must be after start", "mediaLocator is required"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseCatalog_Empty(t *testing.T) {
	cat, err := ParseCatalog(nil)
	require.NoError(t, err)
	assert.Empty(t, cat.Channels)
}
