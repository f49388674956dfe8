package overlay

import (
	"math"
	"testing"
	"time"
)

func newTestFader(h *harness, host *stubHost) *Fader {
	return NewFader(h.clock, h.loop, host, 300*time.Millisecond, 800*time.Millisecond, h.ov.logger)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFaderSequencesFadeOutSwapFadeIn(t *testing.T) {
	h := newHarness(t, Options{})
	host := &stubHost{alive: true}
	f := newTestFader(h, host)
	f.Seed("old")

	f.Transition("new")
	checks := []struct {
		at      time.Duration
		label   Label
		opacity float64
	}{
		{150 * time.Millisecond, "old", 0.5},
		{300 * time.Millisecond, "old", 0},
		{700 * time.Millisecond, "old", 0},
		{800 * time.Millisecond, "new", 0},
		{950 * time.Millisecond, "new", 0.5},
		{1100 * time.Millisecond, "new", 1},
	}
	start := h.clock.Now()
	for _, c := range checks {
		h.advance(start.Add(c.at).Sub(h.clock.Now()))
		now := h.clock.Now()
		if f.Label() != c.label || !approx(f.Opacity().At(now), c.opacity) {
			t.Fatalf("at %s: label %q opacity %.3f, expected %q %.3f",
				c.at, f.Label(), f.Opacity().At(now), c.label, c.opacity)
		}
	}
	if f.Pending() {
		t.Fatal("swap timer still pending after swap")
	}
}

func TestFaderLatestTransitionWins(t *testing.T) {
	h := newHarness(t, Options{})
	host := &stubHost{alive: true}
	f := newTestFader(h, host)

	f.Transition("first")
	h.advance(400 * time.Millisecond)
	f.Transition("second")

	h.advance(400 * time.Millisecond) // first swap would have fired here
	if f.Label() != "" {
		t.Fatalf("superseded swap applied: %q", f.Label())
	}
	h.advance(400 * time.Millisecond)
	if f.Label() != "second" {
		t.Fatalf("expected latest label, got %q", f.Label())
	}
}

func TestFaderDiscardsSwapAlreadyInFlight(t *testing.T) {
	h := newHarness(t, Options{})
	host := &stubHost{alive: true}
	f := newTestFader(h, host)

	f.Transition("first")
	h.clock.Step(800 * time.Millisecond) // swap posted, not run
	f.Transition("second")
	h.loop.Drain()

	if f.Label() != "" {
		t.Fatalf("in-flight stale swap applied: %q", f.Label())
	}
	h.advance(800 * time.Millisecond)
	if f.Label() != "second" {
		t.Fatalf("expected latest label, got %q", f.Label())
	}
}

func TestFaderIgnoresSwapAfterHostDies(t *testing.T) {
	h := newHarness(t, Options{})
	host := &stubHost{alive: true}
	f := newTestFader(h, host)

	f.Transition("late")
	h.clock.Step(800 * time.Millisecond)
	host.alive = false
	h.loop.Drain()

	if f.Label() != "" {
		t.Fatalf("swap ran on dead host: %q", f.Label())
	}
}

func TestFaderStopCancelsSwap(t *testing.T) {
	h := newHarness(t, Options{})
	f := newTestFader(h, &stubHost{alive: true})

	f.Transition("never")
	f.Stop()
	if f.Pending() || h.clock.HasWaiters() {
		t.Fatal("stop left the swap timer behind")
	}
	h.advance(time.Second)
	if f.Label() != "" {
		t.Fatalf("cancelled swap applied: %q", f.Label())
	}
}
