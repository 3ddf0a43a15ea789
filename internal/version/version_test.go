// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "v9.9.9", "abc123", "2025-01-01"
	assert.Equal(t, "v9.9.9 (commit: abc123, built: 2025-01-01)", String())
	assert.Equal(t, "timeshift-startprobe/v9.9.9", UserAgent("startprobe"))
}
