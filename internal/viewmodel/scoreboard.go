/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package viewmodel holds the scoreboard data the overlay renders: the two
// players and the three subbar lines with their hold times.
package viewmodel

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/friendsincode/starboard/internal/overlay"
)

// DefaultSubbarSeconds is the hold time of a subbar line nobody configured.
const DefaultSubbarSeconds = 30

// labelPrefix names the subbar content keys: SubbarLine1..SubbarLine3.
const labelPrefix = "SubbarLine"

// ErrUnknownLabel is returned by Text for content keys the scoreboard does not own.
var ErrUnknownLabel = errors.New("viewmodel: unknown label")

// Player is one competitor on the scoreboard.
type Player struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Color string `json:"color" yaml:"color" toml:"color"`
	Race  string `json:"race,omitempty" yaml:"race,omitempty" toml:"race,omitempty"`
}

// SubbarLine is one rotating line of secondary text.
type SubbarLine struct {
	Text    string `json:"text" yaml:"text" toml:"text"`
	Seconds int    `json:"seconds" yaml:"seconds" toml:"seconds"`
}

// Snapshot is a copy of the scoreboard data.
type Snapshot struct {
	Players [overlay.CompetitorCount]Player `json:"players"`
	Subbar  [overlay.SlotCount]SubbarLine   `json:"subbar"`
}

// Scoreboard is the concrete overlay data source. It is safe for concurrent
// use. Color observers are invoked outside the lock, only when a player's
// color actually changes.
type Scoreboard struct {
	mu        sync.RWMutex
	data      Snapshot
	observers [overlay.CompetitorCount]map[uuid.UUID]func(string)
}

var (
	_ overlay.DataSource  = (*Scoreboard)(nil)
	_ overlay.ColorSource = (*Scoreboard)(nil)
)

// New returns a scoreboard with default player names and subbar times.
func New() *Scoreboard {
	sb := &Scoreboard{}
	sb.data.Players[overlay.Competitor1] = Player{Name: "Player 1", Color: "red"}
	sb.data.Players[overlay.Competitor2] = Player{Name: "Player 2", Color: "blue"}
	for i := range sb.data.Subbar {
		sb.data.Subbar[i].Seconds = DefaultSubbarSeconds
	}
	for i := range sb.observers {
		sb.observers[i] = make(map[uuid.UUID]func(string))
	}
	return sb
}

// SlotLabel returns the content key for slot.
func (sb *Scoreboard) SlotLabel(slot overlay.Slot) (overlay.Label, error) {
	if !slot.Valid() {
		return "", fmt.Errorf("%w: %d", overlay.ErrInvalidSlot, int(slot))
	}
	return overlay.Label(fmt.Sprintf("%s%d", labelPrefix, int(slot)+1)), nil
}

// SlotDuration returns the configured hold for slot in seconds.
func (sb *Scoreboard) SlotDuration(slot overlay.Slot) (int, error) {
	if !slot.Valid() {
		return 0, fmt.Errorf("%w: %d", overlay.ErrInvalidSlot, int(slot))
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.data.Subbar[slot].Seconds, nil
}

// CompetitorColor returns the raw color value of competitor c.
func (sb *Scoreboard) CompetitorColor(c overlay.Competitor) (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("%w: %d", overlay.ErrInvalidCompetitor, int(c))
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.data.Players[c].Color, nil
}

// SubscribeColor registers fn for color changes of competitor c. The returned
// token may be called any number of times.
func (sb *Scoreboard) SubscribeColor(c overlay.Competitor, fn func(string)) (overlay.Unsubscribe, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", overlay.ErrInvalidCompetitor, int(c))
	}
	if fn == nil {
		return nil, errors.New("viewmodel: nil color observer")
	}

	id := uuid.New()
	sb.mu.Lock()
	sb.observers[c][id] = fn
	sb.mu.Unlock()

	return func() error {
		sb.mu.Lock()
		delete(sb.observers[c], id)
		sb.mu.Unlock()
		return nil
	}, nil
}

// Subscribers reports how many color observers competitor c has.
func (sb *Scoreboard) Subscribers(c overlay.Competitor) int {
	if !c.Valid() {
		return 0
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return len(sb.observers[c])
}

// SetPlayerColor changes competitor c's raw color and notifies observers if
// the value differs from the current one.
func (sb *Scoreboard) SetPlayerColor(c overlay.Competitor, raw string) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %d", overlay.ErrInvalidCompetitor, int(c))
	}

	sb.mu.Lock()
	if sb.data.Players[c].Color == raw {
		sb.mu.Unlock()
		return nil
	}
	sb.data.Players[c].Color = raw
	fns := make([]func(string), 0, len(sb.observers[c]))
	for _, fn := range sb.observers[c] {
		fns = append(fns, fn)
	}
	sb.mu.Unlock()

	for _, fn := range fns {
		fn(raw)
	}
	return nil
}

// SetPlayerName changes competitor c's display name.
func (sb *Scoreboard) SetPlayerName(c overlay.Competitor, name string) error {
	return sb.updatePlayer(c, func(p *Player) { p.Name = name })
}

// SetPlayerRace changes competitor c's race or faction tag.
func (sb *Scoreboard) SetPlayerRace(c overlay.Competitor, race string) error {
	return sb.updatePlayer(c, func(p *Player) { p.Race = race })
}

func (sb *Scoreboard) updatePlayer(c overlay.Competitor, fn func(*Player)) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %d", overlay.ErrInvalidCompetitor, int(c))
	}
	sb.mu.Lock()
	fn(&sb.data.Players[c])
	sb.mu.Unlock()
	return nil
}

// SetSubbarLine changes the text shown while slot is active.
func (sb *Scoreboard) SetSubbarLine(slot overlay.Slot, text string) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: %d", overlay.ErrInvalidSlot, int(slot))
	}
	sb.mu.Lock()
	sb.data.Subbar[slot].Text = text
	sb.mu.Unlock()
	return nil
}

// SetSubbarTime changes how long slot is held. The value is stored as given;
// the overlay applies its own minimum when the slot becomes active.
func (sb *Scoreboard) SetSubbarTime(slot overlay.Slot, seconds int) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: %d", overlay.ErrInvalidSlot, int(slot))
	}
	sb.mu.Lock()
	sb.data.Subbar[slot].Seconds = seconds
	sb.mu.Unlock()
	return nil
}

// Text resolves a content key to the text it currently stands for.
func (sb *Scoreboard) Text(label overlay.Label) (string, error) {
	rest, ok := strings.CutPrefix(string(label), labelPrefix)
	if !ok || len(rest) != 1 || rest[0] < '1' || rest[0] > '0'+overlay.SlotCount {
		return "", fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	slot := overlay.Slot(rest[0] - '1')

	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.data.Subbar[slot].Text, nil
}

// Snapshot returns a copy of the current data.
func (sb *Scoreboard) Snapshot() Snapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.data
}
