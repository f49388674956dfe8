/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package overlay

import (
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Tween is a linear animation of a scalar between two values.
type Tween struct {
	From     float64
	To       float64
	Start    time.Time
	Duration time.Duration
}

// Hold returns a tween that stays at v.
func Hold(v float64) Tween {
	return Tween{From: v, To: v}
}

// At returns the animated value at now.
func (t Tween) At(now time.Time) float64 {
	return t.From + (t.To-t.From)*progress(t.Start, t.Duration, now)
}

// Done reports whether the tween has reached its target at now.
func (t Tween) Done(now time.Time) bool {
	return progress(t.Start, t.Duration, now) >= 1
}

// ColorTween is a linear RGB animation between two colors.
type ColorTween struct {
	From     colorful.Color
	To       colorful.Color
	Start    time.Time
	Duration time.Duration
}

// HoldColor returns a color tween that stays at c.
func HoldColor(c colorful.Color) ColorTween {
	return ColorTween{From: c, To: c}
}

// At returns the displayed color at now.
func (t ColorTween) At(now time.Time) colorful.Color {
	return t.From.BlendRgb(t.To, progress(t.Start, t.Duration, now)).Clamped()
}

// Done reports whether the tween has reached its target at now.
func (t ColorTween) Done(now time.Time) bool {
	return progress(t.Start, t.Duration, now) >= 1
}

// Retarget starts a new animation toward to from wherever t is at now, so an
// in-flight animation never jumps back to its original start or old target.
func (t ColorTween) Retarget(to colorful.Color, now time.Time, d time.Duration) ColorTween {
	return ColorTween{From: t.At(now), To: to, Start: now, Duration: d}
}

func progress(start time.Time, d time.Duration, now time.Time) float64 {
	if d <= 0 {
		return 1
	}
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= d {
		return 1
	}
	return float64(elapsed) / float64(d)
}
