// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// Source is the playable stream of one session. Channel and Program share this
// single value and differ only by Kind, Classification and their identifiers.
type Source struct {
	Kind           StreamKind     `json:"kind"`
	AssetID        string         `json:"assetId"`
	ChannelID      string         `json:"channelId"`
	ProgramID      string         `json:"programId,omitempty"`
	Classification Classification `json:"classification"`
	Entitlement    Entitlement    `json:"entitlement"`
}

// ProgramServiceChannelID is the channel the program service is queried for.
// A channel source is its own channel.
func (s Source) ProgramServiceChannelID() string {
	if s.Kind == StreamChannel {
		return s.AssetID
	}
	return s.ChannelID
}

// IsUnifiedPackager reports whether offsets are wall-clock timestamps.
func (s Source) IsUnifiedPackager() bool {
	return s.Entitlement.IsUnifiedPackager()
}

// IsLive reports whether the entitlement describes a live stream. Channel
// sources are live by definition.
func (s Source) IsLive() bool {
	return s.Kind == StreamChannel || s.Entitlement.Live
}

// Classify returns the classification at seek time. Channels stay AlwaysLive;
// programs follow whether the engine currently reports a growing tail.
func (s Source) Classify(liveTail bool) Classification {
	if s.Kind == StreamChannel || s.Classification == AlwaysLive {
		return AlwaysLive
	}
	if liveTail {
		return LiveTail
	}
	return OnDemand
}
