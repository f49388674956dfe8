/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package overlay

import (
	"errors"
	"fmt"
)

// SlotCount is the number of rotating subbar positions.
const SlotCount = 3

// Slot is a rotating subbar position in [0, SlotCount).
type Slot int

// Next returns the following slot in the cycle.
func (s Slot) Next() Slot {
	return (s + 1) % SlotCount
}

// Valid reports whether s is one of the rotating positions.
func (s Slot) Valid() bool {
	return s >= 0 && s < SlotCount
}

func (s Slot) String() string {
	return fmt.Sprintf("slot%d", int(s))
}

// Competitor identifies one side of the scoreboard.
type Competitor int

const (
	Competitor1 Competitor = iota
	Competitor2

	CompetitorCount = 2
)

// Valid reports whether c names one of the two competitors.
func (c Competitor) Valid() bool {
	return c == Competitor1 || c == Competitor2
}

func (c Competitor) String() string {
	switch c {
	case Competitor1:
		return "player1"
	case Competitor2:
		return "player2"
	default:
		return fmt.Sprintf("competitor(%d)", int(c))
	}
}

// Label is an opaque content key. The rendering layer resolves it to text.
type Label string

// Unsubscribe removes a color observer. Calling it more than once is allowed.
type Unsubscribe func() error

// DataSource is the external, replaceable view model the overlay binds to.
// Lookups may be called from any goroutine.
type DataSource interface {
	// SlotDuration returns how many seconds slot should stay on screen.
	SlotDuration(slot Slot) (int, error)
	// SlotLabel returns the content key shown while slot is active.
	SlotLabel(slot Slot) (Label, error)
	// SubscribeColor registers fn for raw color changes of competitor c.
	// fn may be invoked on any goroutine.
	SubscribeColor(c Competitor, fn func(raw string)) (Unsubscribe, error)
}

// ColorSource is optionally implemented by data sources that can report the
// current raw color of a competitor. It seeds the displayed colors on bind.
type ColorSource interface {
	CompetitorColor(c Competitor) (string, error)
}

var (
	// ErrUnbound is returned for lookups made while no data source is bound.
	ErrUnbound = errors.New("overlay: no data source bound")
	// ErrInvalidSlot reports a slot outside [0, SlotCount).
	ErrInvalidSlot = errors.New("overlay: invalid slot")
	// ErrInvalidCompetitor reports an unknown competitor.
	ErrInvalidCompetitor = errors.New("overlay: invalid competitor")
)
