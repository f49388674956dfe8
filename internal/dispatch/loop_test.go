package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDrainRunsTasksInPostOrder(t *testing.T) {
	l := New(zerolog.Nop())

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	if n := l.Drain(); n != 5 {
		t.Fatalf("expected 5 tasks, ran %d", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
}

func TestDrainRunsTasksPostedByTasks(t *testing.T) {
	l := New(zerolog.Nop())

	var order []string
	l.Post(func() {
		order = append(order, "outer")
		l.Post(func() { order = append(order, "inner") })
	})

	if n := l.Drain(); n != 2 {
		t.Fatalf("expected 2 tasks, ran %d", n)
	}
	if len(order) != 2 || order[1] != "inner" {
		t.Fatalf("unexpected order: %v", order)
	}
	if l.Pending() != 0 {
		t.Fatalf("expected empty queue, have %d", l.Pending())
	}
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	l := New(zerolog.Nop())

	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	l.Drain()

	if !ran {
		t.Fatal("task after panic did not run")
	}
}

func TestClosedLoopRejectsPosts(t *testing.T) {
	l := New(zerolog.Nop())
	l.Post(func() { t.Fatal("queued task ran after close") })
	l.Close()
	l.Close()

	if l.Post(func() {}) {
		t.Fatal("post after close should report false")
	}
	if l.Post(nil) {
		t.Fatal("nil task should be rejected")
	}
	if n := l.Drain(); n != 0 {
		t.Fatalf("expected nothing to run, ran %d", n)
	}
}

func TestRunExecutesPostsFromOtherGoroutines(t *testing.T) {
	l := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			l.Post(func() {
				mu.Lock()
				count++
				mu.Unlock()
				wg.Done()
			})
		}()
	}

	waited := make(chan struct{})
	go func() { wg.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for posted tasks")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected run error: %v", err)
	}
	if count != 50 {
		t.Fatalf("expected 50 tasks, ran %d", count)
	}
	if l.Post(func() {}) {
		t.Fatal("loop should be closed after Run returns")
	}
}

func TestRunFinishesQueuedTasksOnCancel(t *testing.T) {
	l := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	l.Post(func() { ran = true })
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected run error: %v", err)
	}
	if !ran {
		t.Fatal("task queued before cancel did not run")
	}
}

func TestRunNowWaitsForRunningTask(t *testing.T) {
	l := New(zerolog.Nop())

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	started := make(chan struct{})
	release := make(chan struct{})
	l.Post(func() {
		close(started)
		<-release
		record("task")
	})
	go l.Drain()
	<-started
	l.Close()

	done := make(chan struct{})
	go func() {
		l.RunNow(func() { record("now") })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("RunNow ran while a drained task was still executing")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "task" || order[1] != "now" {
		t.Fatalf("unexpected order %v", order)
	}
}
