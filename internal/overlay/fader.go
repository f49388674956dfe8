/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package overlay

import (
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/friendsincode/starboard/internal/dispatch"
	"github.com/friendsincode/starboard/internal/telemetry"
)

// liveness is implemented by the component that owns a deferred callback.
type liveness interface {
	live() bool
	changed()
}

// Fader fades the subbar text out, swaps its content after a fixed delay and
// fades it back in. All methods must run on the UI loop.
//
// Overlapping transitions are resolved by generation: a new Transition cancels
// the pending swap, and a swap that was already in flight when it was
// superseded is discarded. The most recent label always ends up on screen.
type Fader struct {
	clock  clock.WithDelayedExecution
	loop   dispatch.Poster
	host   liveness
	fade   time.Duration
	delay  time.Duration
	logger zerolog.Logger

	label   Label
	opacity Tween
	gen     uint64
	timer   clock.Timer
}

// NewFader creates a fader showing no content at full opacity.
func NewFader(clk clock.WithDelayedExecution, loop dispatch.Poster, host liveness, fade, delay time.Duration, logger zerolog.Logger) *Fader {
	return &Fader{
		clock:   clk,
		loop:    loop,
		host:    host,
		fade:    fade,
		delay:   delay,
		logger:  logger,
		opacity: Hold(1),
	}
}

// Transition starts the fade-out now and schedules the swap to label.
func (f *Fader) Transition(label Label) {
	f.cancel("superseded")
	f.gen++
	gen := f.gen

	f.opacity = Tween{From: 1, To: 0, Start: f.clock.Now(), Duration: f.fade}
	f.timer = f.clock.AfterFunc(f.delay, func() {
		f.loop.Post(func() { f.swap(gen, label) })
	})
	telemetry.OverlayActiveTimers.WithLabelValues("swap").Inc()
	telemetry.OverlayTransitionsTotal.Inc()
	f.host.changed()
}

func (f *Fader) swap(gen uint64, label Label) {
	if gen != f.gen || !f.host.live() {
		telemetry.OverlayStaleCallbacksTotal.WithLabelValues("swap").Inc()
		f.logger.Debug().Str("label", string(label)).Msg("discarding stale subbar swap")
		return
	}
	// The timer has fired; drop the handle.
	f.release()

	f.label = label
	f.opacity = Tween{From: 0, To: 1, Start: f.clock.Now(), Duration: f.fade}
	f.host.changed()
}

// Seed shows label immediately without animating.
func (f *Fader) Seed(label Label) {
	f.label = label
	f.opacity = Hold(1)
}

// Stop cancels any pending swap and invalidates swaps already in flight.
func (f *Fader) Stop() {
	f.cancel("stopped")
	f.gen++
}

// Pending reports whether a swap is scheduled.
func (f *Fader) Pending() bool {
	return f.timer != nil
}

// Label returns the content key currently bound to the subbar.
func (f *Fader) Label() Label {
	return f.label
}

// Opacity returns the current opacity animation.
func (f *Fader) Opacity() Tween {
	return f.opacity
}

func (f *Fader) cancel(reason string) {
	if f.timer == nil {
		return
	}
	if f.timer.Stop() {
		telemetry.OverlayStaleCallbacksTotal.WithLabelValues("swap_" + reason).Inc()
	}
	f.release()
}

func (f *Fader) release() {
	if f.timer == nil {
		return
	}
	f.timer = nil
	telemetry.OverlayActiveTimers.WithLabelValues("swap").Dec()
}
