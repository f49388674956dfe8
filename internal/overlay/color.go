/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package overlay

import (
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/friendsincode/starboard/internal/telemetry"
)

// DefaultColor is shown for unknown or empty color values.
var DefaultColor = mustHex("#808080")

// playerColors maps the in-game player color names to their display values.
var playerColors = map[string]colorful.Color{
	"red":        mustHex("#b4141e"),
	"blue":       mustHex("#0042ff"),
	"teal":       mustHex("#1ca7ea"),
	"purple":     mustHex("#540081"),
	"yellow":     mustHex("#ebe129"),
	"orange":     mustHex("#fe8a0e"),
	"green":      mustHex("#168000"),
	"lightpink":  mustHex("#cca6fc"),
	"violet":     mustHex("#1f01c9"),
	"lightgrey":  mustHex("#525494"),
	"darkgreen":  mustHex("#106246"),
	"brown":      mustHex("#4e2a04"),
	"lightgreen": mustHex("#96ff91"),
	"darkgrey":   mustHex("#232323"),
	"pink":       mustHex("#e55bb0"),
	"white":      mustHex("#ffffff"),
	"black":      mustHex("#000000"),
}

// ConvertColor maps a raw color value from the data source to a display color.
// It accepts player color names (case, spaces, dashes and underscores ignored,
// "gray" spelled either way) and hex values with or without a leading '#'.
// Anything else maps to DefaultColor.
func ConvertColor(raw string) colorful.Color {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return DefaultColor
	}

	name := strings.NewReplacer(" ", "", "-", "", "_", "", "gray", "grey").Replace(key)
	if c, ok := playerColors[name]; ok {
		return c
	}

	hex := key
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	if len(hex) == 4 || len(hex) == 7 {
		if c, err := colorful.Hex(hex); err == nil {
			return c
		}
	}
	return DefaultColor
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ColorPulse animates each competitor's displayed color toward the latest
// value reported by the data source. It is owned by the UI loop.
type ColorPulse struct {
	clock    clock.PassiveClock
	duration time.Duration
	tweens   [CompetitorCount]ColorTween
	logger   zerolog.Logger
}

// NewColorPulse creates an animator with both competitors at DefaultColor.
func NewColorPulse(clk clock.PassiveClock, duration time.Duration, logger zerolog.Logger) *ColorPulse {
	p := &ColorPulse{clock: clk, duration: duration, logger: logger}
	for i := range p.tweens {
		p.tweens[i] = HoldColor(DefaultColor)
	}
	return p
}

// OnColorChanged retargets competitor c toward the color for raw. A change
// arriving mid-animation continues from the currently displayed color.
func (p *ColorPulse) OnColorChanged(c Competitor, raw string) {
	if !c.Valid() {
		return
	}
	target := ConvertColor(raw)
	p.tweens[c] = p.tweens[c].Retarget(target, p.clock.Now(), p.duration)
	telemetry.OverlayColorChangesTotal.WithLabelValues(c.String()).Inc()
	p.logger.Debug().Stringer("competitor", c).Str("raw", raw).Str("target", target.Hex()).Msg("color retarget")
}

// Set jumps competitor c to the color for raw without animating.
func (p *ColorPulse) Set(c Competitor, raw string) {
	if !c.Valid() {
		return
	}
	p.tweens[c] = HoldColor(ConvertColor(raw))
}

// Tweens returns a copy of the per-competitor animations.
func (p *ColorPulse) Tweens() [CompetitorCount]ColorTween {
	return p.tweens
}
