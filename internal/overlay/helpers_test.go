package overlay

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/friendsincode/starboard/internal/dispatch"
)

var epoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu        sync.Mutex
	durations [SlotCount]int
	durErr    error
	labelErr  error
	colors    [CompetitorCount]string
	nextID    int
	observers [CompetitorCount]map[int]func(string)

	subscribed   [CompetitorCount]int
	unsubscribed [CompetitorCount]int
	unsubErr     [CompetitorCount]error
	durLookups   [SlotCount]int
}

func newFakeSource(durations ...int) *fakeSource {
	s := &fakeSource{}
	copy(s.durations[:], durations)
	for i := range s.observers {
		s.observers[i] = make(map[int]func(string))
	}
	return s
}

func (s *fakeSource) SlotDuration(slot Slot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slot.Valid() {
		return 0, ErrInvalidSlot
	}
	s.durLookups[slot]++
	if s.durErr != nil {
		return 0, s.durErr
	}
	return s.durations[slot], nil
}

func (s *fakeSource) SlotLabel(slot Slot) (Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.labelErr != nil {
		return "", s.labelErr
	}
	return Label(fmt.Sprintf("SubbarLine%d", int(slot)+1)), nil
}

func (s *fakeSource) SubscribeColor(c Competitor, fn func(string)) (Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !c.Valid() {
		return nil, ErrInvalidCompetitor
	}
	id := s.nextID
	s.nextID++
	s.observers[c][id] = fn
	s.subscribed[c]++
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers[c], id)
		s.unsubscribed[c]++
		return s.unsubErr[c]
	}, nil
}

func (s *fakeSource) CompetitorColor(c Competitor) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colors[c], nil
}

func (s *fakeSource) setDuration(slot Slot, secs int) {
	s.mu.Lock()
	s.durations[slot] = secs
	s.mu.Unlock()
}

// emit notifies the current observers of c, like a view model would.
func (s *fakeSource) emit(c Competitor, raw string) {
	s.mu.Lock()
	s.colors[c] = raw
	fns := make([]func(string), 0, len(s.observers[c]))
	for _, fn := range s.observers[c] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(raw)
	}
}

func (s *fakeSource) counts() (sub, unsub [CompetitorCount]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed, s.unsubscribed
}

func (s *fakeSource) liveObservers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.observers {
		n += len(m)
	}
	return n
}

type harness struct {
	t     *testing.T
	clock *testingclock.FakeClock
	loop  *dispatch.Loop
	ov    *Overlay
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	fc := testingclock.NewFakeClock(epoch)
	loop := dispatch.New(zerolog.Nop())
	return &harness{
		t:     t,
		clock: fc,
		loop:  loop,
		ov:    New(opts, fc, loop, zerolog.Nop()),
	}
}

// advance moves fake time forward in small steps, draining the loop after
// each step the way the real loop would run posted callbacks promptly.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	const step = 100 * time.Millisecond
	for d > 0 {
		s := step
		if d < s {
			s = d
		}
		h.clock.Step(s)
		h.loop.Drain()
		d -= s
	}
}

func (h *harness) mount() {
	h.t.Helper()
	if err := h.ov.Mount(); err != nil {
		h.t.Fatalf("mount: %v", err)
	}
	h.loop.Drain()
}

func (h *harness) unmount() error {
	err := h.ov.Unmount()
	h.loop.Drain()
	return err
}

func (h *harness) elapsed() time.Duration {
	return h.clock.Now().Sub(epoch)
}

func (h *harness) frame() Frame {
	return h.ov.State().Frame(h.clock.Now())
}

// stubHost drives a Fader or Rotation without an Overlay around it.
type stubHost struct {
	alive   bool
	src     DataSource
	changes int
}

func (h *stubHost) live() bool         { return h.alive }
func (h *stubHost) changed()           { h.changes++ }
func (h *stubHost) source() DataSource { return h.src }

var errLookup = errors.New("lookup failed")
