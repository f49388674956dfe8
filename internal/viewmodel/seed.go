/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package viewmodel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/starboard/internal/overlay"
)

// Seed is the initial scoreboard content loaded from a file.
type Seed struct {
	Players []Player     `yaml:"players" toml:"players"`
	Subbar  []SubbarLine `yaml:"subbar" toml:"subbar"`
}

// LoadSeed reads a YAML (.yaml, .yml) or TOML (.toml) seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	seed, err := ParseSeed(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seed, nil
}

// ParseSeed decodes seed data in the given format: "yaml", "yml" or "toml".
// Unknown keys are rejected.
func ParseSeed(data []byte, format string) (*Seed, error) {
	var seed Seed
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case "toml":
		md, err := toml.Decode(string(data), &seed)
		if err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decode toml: unknown key %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", format)
	}

	if len(seed.Players) > overlay.CompetitorCount {
		return nil, fmt.Errorf("seed lists %d players, at most %d allowed", len(seed.Players), overlay.CompetitorCount)
	}
	if len(seed.Subbar) > overlay.SlotCount {
		return nil, fmt.Errorf("seed lists %d subbar lines, at most %d allowed", len(seed.Subbar), overlay.SlotCount)
	}
	return &seed, nil
}

// ApplySeed copies the seed into the scoreboard. Entries missing from the
// seed keep their current values; a zero subbar time keeps the current time.
func (sb *Scoreboard) ApplySeed(seed *Seed) error {
	if seed == nil {
		return nil
	}
	for i, p := range seed.Players {
		c := overlay.Competitor(i)
		if p.Name != "" {
			if err := sb.SetPlayerName(c, p.Name); err != nil {
				return err
			}
		}
		if p.Race != "" {
			if err := sb.SetPlayerRace(c, p.Race); err != nil {
				return err
			}
		}
		if p.Color != "" {
			if err := sb.SetPlayerColor(c, p.Color); err != nil {
				return err
			}
		}
	}
	for i, line := range seed.Subbar {
		slot := overlay.Slot(i)
		if err := sb.SetSubbarLine(slot, line.Text); err != nil {
			return err
		}
		if line.Seconds != 0 {
			if err := sb.SetSubbarTime(slot, line.Seconds); err != nil {
				return err
			}
		}
	}
	return nil
}
