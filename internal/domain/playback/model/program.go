// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// Program is one EPG entry of a channel.
type Program struct {
	ProgramID string `json:"programId"`
	ChannelID string `json:"channelId"`
	AssetID   string `json:"assetId"`
	StartMs   int64  `json:"startTime"`
	EndMs     int64  `json:"endTime"`
}

// Airs reports whether ts falls inside [StartMs, EndMs).
func (p Program) Airs(ts int64) bool {
	return ts >= p.StartMs && ts < p.EndMs
}

// Verdict is the outcome of an entitlement check for one instant.
type Verdict struct {
	Granted   bool   `json:"granted"`
	Reason    string `json:"reason,omitempty"`
	ProgramID string `json:"programId,omitempty"`
}

func Granted(programID string) Verdict {
	return Verdict{Granted: true, ProgramID: programID}
}

func Denied(reason string) Verdict {
	return Verdict{Reason: reason}
}
