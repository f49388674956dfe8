/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	// Scoreboard updates from the control surface.
	EventPlayerColor EventType = "scoreboard.player_color"
	EventPlayerName  EventType = "scoreboard.player_name"
	EventPlayerRace  EventType = "scoreboard.player_race"
	EventSubbarLine  EventType = "scoreboard.subbar_line"
	EventSubbarTime  EventType = "scoreboard.subbar_time"

	// Overlay lifecycle notifications.
	EventOverlayMounted   EventType = "overlay.mounted"
	EventOverlayUnmounted EventType = "overlay.unmounted"
)

// ScoreboardEvents lists the event types that change scoreboard data.
var ScoreboardEvents = []EventType{
	EventPlayerColor,
	EventPlayerName,
	EventPlayerRace,
	EventSubbarLine,
	EventSubbarTime,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// PubSub is implemented by the in-process bus and the distributed buses.
type PubSub interface {
	Subscribe(eventType EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events rather
// than blocking the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel. Unknown or
// already removed subscribers are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Subscribers reports how many subscribers are registered for event type.
func (b *Bus) Subscribers(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}
