// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package exposuresim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the simulated content: channels and the programs airing on them.
type Catalog struct {
	Channels []Channel `yaml:"channels"`
	Programs []Program `yaml:"programs"`
}

type Channel struct {
	ID           string `yaml:"id"`
	MediaLocator string `yaml:"mediaLocator"`
}

// Program is one EPG entry. Start and End are wall-clock milliseconds.
type Program struct {
	ID           string `yaml:"id"`
	ChannelID    string `yaml:"channelId"`
	Start        int64  `yaml:"start"`
	End          int64  `yaml:"end"`
	MediaLocator string `yaml:"mediaLocator"`
	// Live marks a program whose manifest is still growing.
	Live bool `yaml:"live"`

	// Deny rejects entitlement requests and validations with DenyReason.
	Deny       bool   `yaml:"deny"`
	DenyReason string `yaml:"denyReason"`
	// NoMediaUnlessUnencrypted rejects default-variant requests with
	// NO_MEDIA_FOR_PROGRAM.
	NoMediaUnlessUnencrypted bool `yaml:"noMediaUnlessUnencrypted"`
}

// LoadCatalog reads a YAML catalog. Unknown fields are rejected.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	cat.sortPrograms()
	return &cat, nil
}

// Validate checks identifiers, references and program windows.
func (c *Catalog) Validate() error {
	var errs []error
	channels := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		switch {
		case strings.TrimSpace(ch.ID) == "":
			errs = append(errs, fmt.Errorf("channels[%d]: id is required", i))
		case channels[ch.ID]:
			errs = append(errs, fmt.Errorf("channels[%d]: duplicate id %q", i, ch.ID))
		}
		if ch.MediaLocator == "" {
			errs = append(errs, fmt.Errorf("channels[%d]: mediaLocator is required", i))
		}
		channels[ch.ID] = true
	}

	programs := make(map[string]bool, len(c.Programs))
	for i, p := range c.Programs {
		switch {
		case strings.TrimSpace(p.ID) == "":
			errs = append(errs, fmt.Errorf("programs[%d]: id is required", i))
		case programs[p.ID]:
			errs = append(errs, fmt.Errorf("programs[%d]: duplicate id %q", i, p.ID))
		}
		programs[p.ID] = true
		if !channels[p.ChannelID] {
			errs = append(errs, fmt.Errorf("programs[%d]: unknown channel %q", i, p.ChannelID))
		}
		if p.End <= p.Start {
			errs = append(errs, fmt.Errorf("programs[%d]: end must be after start", i))
		}
		if p.MediaLocator == "" {
			errs = append(errs, fmt.Errorf("programs[%d]: mediaLocator is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Catalog) sortPrograms() {
	sort.SliceStable(c.Programs, func(i, j int) bool {
		if c.Programs[i].ChannelID != c.Programs[j].ChannelID {
			return c.Programs[i].ChannelID < c.Programs[j].ChannelID
		}
		return c.Programs[i].Start < c.Programs[j].Start
	})
}

func (c *Catalog) channel(id string) (Channel, bool) {
	for _, ch := range c.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return Channel{}, false
}

func (c *Catalog) program(id string) (Program, bool) {
	for _, p := range c.Programs {
		if p.ID == id {
			return p, true
		}
	}
	return Program{}, false
}

// programAt returns the program airing on channelID at ts.
func (c *Catalog) programAt(channelID string, ts int64) (Program, bool) {
	for _, p := range c.Programs {
		if p.ChannelID == channelID && ts >= p.Start && ts < p.End {
			return p, true
		}
	}
	return Program{}, false
}
