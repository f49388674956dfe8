/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package overlay

import "time"

// State is an immutable snapshot of the overlay published after every change
// on the UI loop. Animations are stored as tweens and evaluated by Frame.
type State struct {
	Mounted      bool
	Preview      bool
	Active       bool
	Slot         Slot
	Label        Label
	Opacity      Tween
	Colors       [CompetitorCount]ColorTween
	Rotations    uint64
	NextRotation time.Time
	SwapPending  bool
}

// Frame is what the rendering layer draws at a given instant.
type Frame struct {
	Mounted      bool       `json:"mounted"`
	Preview      bool       `json:"preview"`
	Slot         int        `json:"slot"`
	Label        string     `json:"label"`
	Opacity      float64    `json:"opacity"`
	Colors       [2]string  `json:"colors"`
	Animating    bool       `json:"animating"`
	Rotations    uint64     `json:"rotations"`
	NextRotation *time.Time `json:"next_rotation,omitempty"`
}

// Frame evaluates the snapshot at now. Slot is -1 before the first rotation.
func (s State) Frame(now time.Time) Frame {
	f := Frame{
		Mounted:   s.Mounted,
		Preview:   s.Preview,
		Slot:      -1,
		Label:     string(s.Label),
		Opacity:   s.Opacity.At(now),
		Rotations: s.Rotations,
		Animating: !s.Opacity.Done(now) || s.SwapPending,
	}
	if s.Active {
		f.Slot = int(s.Slot)
	}
	for i, c := range s.Colors {
		f.Colors[i] = c.At(now).Hex()
		if !c.Done(now) {
			f.Animating = true
		}
	}
	if !s.NextRotation.IsZero() {
		next := s.NextRotation
		f.NextRotation = &next
	}
	return f
}

// Equal reports whether two frames would render identically.
func (f Frame) Equal(o Frame) bool {
	if f.Mounted != o.Mounted || f.Preview != o.Preview || f.Slot != o.Slot ||
		f.Label != o.Label || f.Opacity != o.Opacity || f.Colors != o.Colors ||
		f.Animating != o.Animating || f.Rotations != o.Rotations {
		return false
	}
	if (f.NextRotation == nil) != (o.NextRotation == nil) {
		return false
	}
	return f.NextRotation == nil || f.NextRotation.Equal(*o.NextRotation)
}
