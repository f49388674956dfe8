/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent structured log lines in memory so
// operators can inspect overlay activity without shell access.
package logbuffer

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1000

// Entry is one captured zerolog event.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Query filters entries. Zero values match everything.
type Query struct {
	MinLevel  zerolog.Level
	Component string
	Search    string
	Since     time.Time
	Limit     int
	Newest    bool
}

// Stats summarizes the buffer contents.
type Stats struct {
	Capacity int            `json:"capacity"`
	Count    int            `json:"count"`
	Dropped  uint64         `json:"dropped"`
	Levels   map[string]int `json:"levels"`
}

// Buffer is a fixed-size ring of entries. It implements io.Writer so it can
// sit behind zerolog.MultiLevelWriter.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
	dropped uint64
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{entries: make([]Entry, capacity)}
}

// Add appends an entry, overwriting the oldest once full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == len(b.entries) {
		b.dropped++
	} else {
		b.count++
	}
	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
}

// Entries returns a copy of the buffer, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

func (b *Buffer) snapshotLocked() []Entry {
	out := make([]Entry, b.count)
	start := (b.head - b.count + len(b.entries)) % len(b.entries)
	for i := range out {
		out[i] = b.entries[(start+i)%len(b.entries)]
	}
	return out
}

// Query returns the entries matching q, oldest first unless q.Newest is set.
// Limit keeps the most recent matches.
func (b *Buffer) Query(q Query) []Entry {
	all := b.Entries()
	search := strings.ToLower(q.Search)

	matched := make([]Entry, 0, len(all))
	for _, e := range all {
		if q.MinLevel > zerolog.DebugLevel && levelOf(e.Level) < q.MinLevel {
			continue
		}
		if q.Component != "" && e.Component != q.Component {
			continue
		}
		if !q.Since.IsZero() && e.Time.Before(q.Since) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Message), search) {
			continue
		}
		matched = append(matched, e)
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[len(matched)-q.Limit:]
	}
	if q.Newest {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	return matched
}

// Components lists the distinct component names seen, sorted.
func (b *Buffer) Components() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range b.snapshotLocked() {
		if e.Component != "" {
			seen[e.Component] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Stats reports occupancy and per-level counts.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		Capacity: len(b.entries),
		Count:    b.count,
		Dropped:  b.dropped,
		Levels:   make(map[string]int),
	}
	for _, e := range b.snapshotLocked() {
		st.Levels[e.Level]++
	}
	return st
}

// Write parses one zerolog JSON event. Lines that are not JSON objects are
// counted as written and otherwise ignored.
func (b *Buffer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil
	}

	e := Entry{Time: time.Now().UTC()}
	if v, ok := raw[zerolog.LevelFieldName].(string); ok {
		e.Level = v
		delete(raw, zerolog.LevelFieldName)
	}
	if v, ok := raw[zerolog.MessageFieldName].(string); ok {
		e.Message = v
		delete(raw, zerolog.MessageFieldName)
	}
	if v, ok := raw["component"].(string); ok {
		e.Component = v
		delete(raw, "component")
	}
	if v, ok := raw[zerolog.TimestampFieldName]; ok {
		if t, ok := parseTime(v); ok {
			e.Time = t
		}
		delete(raw, zerolog.TimestampFieldName)
	}
	if len(raw) > 0 {
		e.Fields = raw
	}

	b.Add(e)
	return len(p), nil
}

// parseTime accepts the unix-seconds and RFC 3339 timestamp formats zerolog emits.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		sec, frac := math.Modf(t)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

func levelOf(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.TraceLevel
	}
	return lvl
}
