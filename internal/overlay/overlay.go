/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package overlay schedules the scoreboard overlay's visual transitions: the
// rotating subbar, its fades, and the competitor color animations.
//
// All visible state is owned by a single UI loop (see package dispatch). Timer
// callbacks and data source notifications only post tasks to that loop.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/friendsincode/starboard/internal/dispatch"
	"github.com/friendsincode/starboard/internal/telemetry"
)

// Options tune overlay timing. Zero values take the defaults.
type Options struct {
	// Preview mounts the overlay inert: no timers and no subscriptions.
	Preview bool

	BootstrapDelay time.Duration // wait before the first rotation
	MinHold        time.Duration // hold for missing or non-positive slot durations
	FadeDuration   time.Duration // each half of a subbar fade
	SwapDelay      time.Duration // fade-out start to content swap
	ColorDuration  time.Duration // competitor color animation
}

// DefaultOptions returns the standard overlay timing.
func DefaultOptions() Options {
	return Options{
		BootstrapDelay: 20 * time.Second,
		MinHold:        2 * time.Second,
		FadeDuration:   300 * time.Millisecond,
		SwapDelay:      800 * time.Millisecond,
		ColorDuration:  500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.BootstrapDelay <= 0 {
		o.BootstrapDelay = def.BootstrapDelay
	}
	if o.MinHold <= 0 {
		o.MinHold = def.MinHold
	}
	if o.FadeDuration <= 0 {
		o.FadeDuration = def.FadeDuration
	}
	if o.SwapDelay <= 0 {
		o.SwapDelay = def.SwapDelay
	}
	if o.ColorDuration <= 0 {
		o.ColorDuration = def.ColorDuration
	}
	return o
}

// Overlay binds the rotation, fader and color animator to a data source and
// manages their lifetime.
//
// Unmount (or Close) must be called to tear the overlay down; an overlay that
// is dropped while mounted keeps its rotation timer pending until it fires.
type Overlay struct {
	opts   Options
	clock  clock.WithDelayedExecution
	loop   dispatch.Executor
	logger zerolog.Logger

	// mu guards the binding and the mounted flag. It is held across the whole
	// unsubscribe/subscribe swap so concurrent rebinds serialize.
	mu      sync.Mutex
	src     DataSource
	unsubs  [CompetitorCount]Unsubscribe
	mounted bool
	bindGen atomic.Uint64

	// Owned by the UI loop. alive gates every deferred callback; shown is
	// what readers see and is also set in preview mode.
	alive    bool
	shown    bool
	rotation *Rotation
	fader    *Fader
	pulse    *ColorPulse

	state atomic.Pointer[State]
}

// New creates an unmounted overlay. Tasks are posted to loop and timers are
// scheduled on clk.
func New(opts Options, clk clock.WithDelayedExecution, loop dispatch.Executor, logger zerolog.Logger) *Overlay {
	opts = opts.withDefaults()
	logger = logger.With().Str("component", "overlay").Logger()

	o := &Overlay{
		opts:   opts,
		clock:  clk,
		loop:   loop,
		logger: logger,
	}
	o.fader = NewFader(clk, loop, o, opts.FadeDuration, opts.SwapDelay, logger)
	o.rotation = NewRotation(clk, loop, o, o.fader, opts.BootstrapDelay, opts.MinHold, logger)
	o.pulse = NewColorPulse(clk, opts.ColorDuration, logger)
	o.state.Store(&State{Preview: opts.Preview, Opacity: Hold(1), Colors: o.pulse.Tweens()})
	return o
}

// Options returns the effective timing.
func (o *Overlay) Options() Options {
	return o.opts
}

// SetDataSource replaces the bound data source. The previous source is
// unsubscribed before the new one is subscribed. Binding the source that is
// already bound does nothing. A nil source unbinds.
//
// Sources are compared by identity and must therefore be comparable values,
// typically pointers.
func (o *Overlay) SetDataSource(src DataSource) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if src == o.src {
		return nil
	}

	_, span := telemetry.StartSpan(context.Background(), "overlay", "rebind")
	defer span.End()

	errs := []error{o.unsubscribeLocked()}
	o.src = src
	gen := o.bindGen.Add(1)

	switch {
	case o.mounted && o.opts.Preview:
		o.loop.Post(func() {
			if !o.shown || gen != o.bindGen.Load() {
				return
			}
			o.seed(src)
			o.changed()
		})
	case o.mounted:
		errs = append(errs, o.subscribeLocked())
		o.loop.Post(func() {
			if !o.alive || gen != o.bindGen.Load() {
				return
			}
			o.seedColors(src, true)
			o.changed()
		})
	}

	err := errors.Join(errs...)
	telemetry.RecordError(span, err)
	if err != nil {
		o.logger.Warn().Err(err).Msg("data source rebind completed with errors")
	}
	return err
}

// Mount subscribes to the bound data source and starts the rotation. In
// preview mode the first slot's content and the current colors are shown
// statically: no timer is armed and nothing is subscribed.
func (o *Overlay) Mount() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.mounted {
		return nil
	}
	o.mounted = true

	src := o.src
	if o.opts.Preview {
		o.loop.Post(func() {
			o.shown = true
			o.seed(src)
			o.changed()
		})
		o.logger.Info().Msg("overlay mounted in preview mode")
		return nil
	}

	err := o.subscribeLocked()
	o.loop.Post(func() {
		o.alive = true
		o.shown = true
		o.seed(src)
		o.rotation.Start()
		o.changed()
	})
	o.logger.Info().Bool("bound", src != nil).Msg("overlay mounted")
	return err
}

// Unmount stops all timers and unsubscribes from the data source. It is safe
// to call repeatedly and on an overlay that was never mounted or bound. Every
// teardown step runs even when an earlier one fails.
func (o *Overlay) Unmount() error {
	o.mu.Lock()
	if !o.mounted {
		o.mu.Unlock()
		return nil
	}
	o.mounted = false

	err := o.unsubscribeLocked()
	posted := o.loop.Post(o.halt)
	o.mu.Unlock()

	if !posted {
		// The loop no longer accepts tasks but may still be finishing one.
		// mu must not be held here: a rotation tick takes it to read the source.
		o.loop.RunNow(o.halt)
	}

	if err != nil {
		o.logger.Warn().Err(err).Msg("overlay unmounted with errors")
	} else {
		o.logger.Info().Msg("overlay unmounted")
	}
	return err
}

// Close is Unmount.
func (o *Overlay) Close() error {
	return o.Unmount()
}

// State returns the latest published state. Safe from any goroutine.
func (o *Overlay) State() State {
	return *o.state.Load()
}

func (o *Overlay) halt() {
	o.alive = false
	o.shown = false
	o.rotation.Stop()
	o.fader.Stop()
	o.changed()
}

// seed shows the first slot's content and the current colors without animating.
func (o *Overlay) seed(src DataSource) {
	if src == nil {
		return
	}
	if label, err := src.SlotLabel(0); err == nil {
		o.fader.Seed(label)
	} else {
		o.logger.Debug().Err(err).Msg("no initial subbar label")
	}
	o.seedColors(src, false)
}

func (o *Overlay) seedColors(src DataSource, animate bool) {
	cs, ok := src.(ColorSource)
	if !ok {
		return
	}
	for c := Competitor1; c < CompetitorCount; c++ {
		raw, err := cs.CompetitorColor(c)
		if err != nil {
			continue
		}
		if animate {
			o.pulse.OnColorChanged(c, raw)
		} else {
			o.pulse.Set(c, raw)
		}
	}
}

func (o *Overlay) subscribeLocked() error {
	if o.src == nil {
		return nil
	}

	gen := o.bindGen.Load()
	var errs []error
	for c := Competitor1; c < CompetitorCount; c++ {
		c := c
		unsub, err := o.src.SubscribeColor(c, func(raw string) {
			o.loop.Post(func() { o.onColorChanged(gen, c, raw) })
		})
		if err != nil {
			telemetry.OverlayBindingsTotal.WithLabelValues("subscribe", "error").Inc()
			errs = append(errs, fmt.Errorf("subscribe %s: %w", c, err))
			continue
		}
		o.unsubs[c] = unsub
		telemetry.OverlayBindingsTotal.WithLabelValues("subscribe", "ok").Inc()
	}
	return errors.Join(errs...)
}

// unsubscribeLocked releases both tokens. Each token is called at most once.
func (o *Overlay) unsubscribeLocked() error {
	var errs []error
	for c := range o.unsubs {
		unsub := o.unsubs[c]
		o.unsubs[c] = nil
		if unsub == nil {
			continue
		}
		if err := safeUnsubscribe(unsub); err != nil {
			telemetry.OverlayBindingsTotal.WithLabelValues("unsubscribe", "error").Inc()
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", Competitor(c), err))
			continue
		}
		telemetry.OverlayBindingsTotal.WithLabelValues("unsubscribe", "ok").Inc()
	}
	return errors.Join(errs...)
}

func safeUnsubscribe(unsub Unsubscribe) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unsubscribe panicked: %v", r)
		}
	}()
	return unsub()
}

func (o *Overlay) onColorChanged(gen uint64, c Competitor, raw string) {
	if !o.alive || gen != o.bindGen.Load() {
		telemetry.OverlayStaleCallbacksTotal.WithLabelValues("color").Inc()
		return
	}
	o.pulse.OnColorChanged(c, raw)
	o.changed()
}

// live implements liveness.
func (o *Overlay) live() bool {
	return o.alive
}

// source implements rotationHost.
func (o *Overlay) source() DataSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.src
}

// changed publishes a fresh State for readers on other goroutines.
func (o *Overlay) changed() {
	slot, active := o.rotation.Current()
	o.state.Store(&State{
		Mounted:      o.shown,
		Preview:      o.opts.Preview,
		Active:       active,
		Slot:         slot,
		Label:        o.fader.Label(),
		Opacity:      o.fader.Opacity(),
		Colors:       o.pulse.Tweens(),
		Rotations:    o.rotation.Rotations(),
		NextRotation: o.rotation.NextFire(),
		SwapPending:  o.fader.Pending(),
	})
}
