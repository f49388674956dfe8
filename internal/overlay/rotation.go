/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package overlay

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/friendsincode/starboard/internal/dispatch"
	"github.com/friendsincode/starboard/internal/telemetry"
)

// maxHoldSeconds is the longest hold a time.Duration can represent.
const maxHoldSeconds = math.MaxInt64 / int64(time.Second)

// rotationHost is the component that owns the rotation.
type rotationHost interface {
	liveness
	source() DataSource
}

// Rotation cycles the subbar through its slots. Each slot is held for the
// duration the data source reports at the moment the slot becomes active.
// All methods must run on the UI loop.
//
// At most one rotation timer exists at a time. Every arm gets a sequence
// number; a fire whose sequence is no longer current is ignored, which covers
// timers that expired while being stopped or replaced.
type Rotation struct {
	clock     clock.WithDelayedExecution
	loop      dispatch.Poster
	host      rotationHost
	fader     *Fader
	bootstrap time.Duration
	minHold   time.Duration
	logger    zerolog.Logger

	current   Slot
	active    bool
	rotations uint64
	timer     clock.Timer
	seq       uint64
	fireAt    time.Time
}

// NewRotation creates a stopped rotation.
func NewRotation(clk clock.WithDelayedExecution, loop dispatch.Poster, host rotationHost, fader *Fader, bootstrap, minHold time.Duration, logger zerolog.Logger) *Rotation {
	return &Rotation{
		clock:     clk,
		loop:      loop,
		host:      host,
		fader:     fader,
		bootstrap: bootstrap,
		minHold:   minHold,
		logger:    logger,
		current:   SlotCount - 1,
	}
}

// Start arms the bootstrap timer. The first tick enters slot 0 regardless of
// any slot's configured duration.
func (r *Rotation) Start() {
	r.current = SlotCount - 1
	r.active = false
	r.arm(r.bootstrap)
	r.logger.Debug().Dur("bootstrap", r.bootstrap).Msg("rotation started")
}

// Stop cancels the pending rotation timer. Fires already in flight are ignored.
func (r *Rotation) Stop() {
	r.dispose()
	r.seq++
	r.fireAt = time.Time{}
}

func (r *Rotation) onTick(seq uint64) {
	if seq != r.seq || !r.host.live() {
		telemetry.OverlayStaleCallbacksTotal.WithLabelValues("rotation").Inc()
		return
	}

	_, span := telemetry.StartSpan(context.Background(), "overlay", "rotate")
	defer span.End()

	// The timer that got us here is spent; it must never fire twice.
	r.dispose()

	r.current = r.current.Next()
	r.active = true
	r.rotations++

	label, labelOK, hold := r.resolve(r.current)
	telemetry.AddSpanAttributes(span, map[string]any{
		"slot":         int(r.current),
		"label":        string(label),
		"hold_seconds": hold.Seconds(),
	})

	if labelOK {
		r.fader.Transition(label)
	}

	r.arm(hold)
	telemetry.OverlayRotationsTotal.WithLabelValues(r.current.String()).Inc()
	telemetry.OverlayHoldSeconds.Observe(hold.Seconds())

	r.logger.Debug().
		Stringer("slot", r.current).
		Str("label", string(label)).
		Dur("hold", hold).
		Msg("subbar rotated")
	r.host.changed()
}

// resolve reads the label and hold for slot from the bound source. Lookup
// failures never stop the rotation: the hold falls back to the minimum interval.
func (r *Rotation) resolve(slot Slot) (Label, bool, time.Duration) {
	src := r.host.source()
	if src == nil {
		telemetry.OverlayHoldFallbacksTotal.WithLabelValues("unbound").Inc()
		r.logger.Debug().Stringer("slot", slot).Err(ErrUnbound).Msg("using minimum hold")
		return "", false, r.minHold
	}

	hold := r.minHold
	secs, err := src.SlotDuration(slot)
	switch {
	case err != nil:
		telemetry.OverlayHoldFallbacksTotal.WithLabelValues("lookup").Inc()
		r.logger.Warn().Err(err).Stringer("slot", slot).Msg("slot duration lookup failed, using minimum hold")
	case secs <= 0:
		telemetry.OverlayHoldFallbacksTotal.WithLabelValues("invalid").Inc()
		r.logger.Warn().Int("seconds", secs).Stringer("slot", slot).Msg("non-positive slot duration, using minimum hold")
	case int64(secs) > maxHoldSeconds:
		telemetry.OverlayHoldFallbacksTotal.WithLabelValues("above_maximum").Inc()
		r.logger.Warn().Int("seconds", secs).Stringer("slot", slot).Msg("slot duration too long, capping hold")
		hold = time.Duration(maxHoldSeconds) * time.Second
	default:
		hold = time.Duration(secs) * time.Second
	}

	label, err := src.SlotLabel(slot)
	if err != nil {
		r.logger.Warn().Err(err).Stringer("slot", slot).Msg("slot label lookup failed, keeping current content")
		return "", false, hold
	}
	return label, true, hold
}

func (r *Rotation) arm(d time.Duration) {
	if d <= 0 {
		d = r.minHold
	}
	r.dispose()
	r.seq++
	seq := r.seq
	r.fireAt = r.clock.Now().Add(d)
	r.timer = r.clock.AfterFunc(d, func() {
		r.loop.Post(func() { r.onTick(seq) })
	})
	telemetry.OverlayActiveTimers.WithLabelValues("rotation").Inc()
}

func (r *Rotation) dispose() {
	if r.timer == nil {
		return
	}
	r.timer.Stop()
	r.timer = nil
	telemetry.OverlayActiveTimers.WithLabelValues("rotation").Dec()
}

// Current returns the active slot and whether the first rotation has happened.
func (r *Rotation) Current() (Slot, bool) {
	return r.current, r.active
}

// Armed reports whether a rotation timer is pending.
func (r *Rotation) Armed() bool {
	return r.timer != nil
}

// NextFire returns when the pending rotation timer is due, or zero if none.
func (r *Rotation) NextFire() time.Time {
	if r.timer == nil {
		return time.Time{}
	}
	return r.fireAt
}

// Rotations returns how many rotations have happened since construction.
func (r *Rotation) Rotations() uint64 {
	return r.rotations
}
