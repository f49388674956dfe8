/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package dispatch provides the single-goroutine execution context that owns
// all visible overlay state. Other goroutines never mutate that state; they
// post tasks here instead.
package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/starboard/internal/telemetry"
)

// Poster accepts tasks for asynchronous execution on the owning goroutine.
type Poster interface {
	Post(task func()) bool
}

// Executor is a Poster that can also run a task synchronously, serialized
// with the tasks it drains.
type Executor interface {
	Poster
	RunNow(task func())
}

// Loop is an unbounded FIFO of tasks drained by one goroutine at a time.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}

	// running serializes Drain so tasks never overlap, whoever drives the loop.
	running sync.Mutex

	logger zerolog.Logger
}

// New creates a loop. Nothing runs until Run or Drain is called.
func New(logger zerolog.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger.With().Str("component", "dispatch").Logger(),
	}
}

// Post enqueues a task without blocking. It reports false once the loop has
// been closed; the task is dropped in that case.
func (l *Loop) Post(task func()) bool {
	if task == nil {
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	depth := len(l.queue)
	l.mu.Unlock()

	telemetry.DispatchQueueDepth.Set(float64(depth))

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains tasks until ctx is cancelled. It then rejects further posts,
// runs what was already queued and returns.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug().Msg("ui loop started")
	defer l.logger.Debug().Msg("ui loop stopped")

	for {
		l.Drain()
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			l.mu.Unlock()
			l.Drain()
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Drain runs queued tasks on the calling goroutine until the queue is empty,
// including tasks posted by the tasks themselves. It returns how many ran.
func (l *Loop) Drain() int {
	l.running.Lock()
	defer l.running.Unlock()

	ran := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			telemetry.DispatchQueueDepth.Set(0)
			return ran
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range batch {
			l.run(task)
			ran++
		}
	}
}

// RunNow runs task on the calling goroutine once no other task is running,
// whether or not the loop is closed. It must not be called from a task.
func (l *Loop) RunNow(task func()) {
	l.running.Lock()
	defer l.running.Unlock()
	l.run(task)
}

// Pending reports how many tasks are waiting.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close rejects further posts and discards anything still queued.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if n := len(l.queue); n > 0 {
		l.logger.Debug().Int("dropped", n).Msg("ui loop closed with pending tasks")
	}
	l.queue = nil
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.DispatchPanicsTotal.Inc()
			l.logger.Error().Interface("panic", r).Msg("ui task panicked")
		}
	}()
	telemetry.DispatchTasksTotal.Inc()
	task()
}
