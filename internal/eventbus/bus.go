/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus carries scoreboard events between overlay instances.
//
// Every bus delivers to local subscribers through an in-process events.Bus.
// The Redis and NATS buses additionally forward published events to other
// nodes and republish what other nodes send on the local bus.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/starboard/internal/events"
	"github.com/friendsincode/starboard/internal/telemetry"
)

// Bus is an event bus that owns network resources.
type Bus interface {
	events.PubSub
	Close() error
}

// MemoryBus is a single-node bus.
type MemoryBus struct {
	*events.Bus
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{Bus: events.NewBus()}
}

// Close implements Bus.
func (MemoryBus) Close() error { return nil }

// message is the wire format shared by the Redis and NATS buses.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("unmarshal event message: missing event type")
	}
	return &msg, nil
}

// relay decodes a message received from the network and republishes it
// locally. Messages this node sent itself are skipped. It reports whether the
// message was delivered.
func relay(local *events.Bus, backend, nodeID string, data []byte) (*message, bool, error) {
	msg, err := unmarshalMessage(data)
	if err != nil {
		telemetry.EventBusMessagesTotal.WithLabelValues(backend, "error").Inc()
		return nil, false, err
	}
	if msg.NodeID == nodeID {
		telemetry.EventBusMessagesTotal.WithLabelValues(backend, "echo").Inc()
		return msg, false, nil
	}
	local.Publish(msg.EventType, msg.Payload)
	telemetry.EventBusMessagesTotal.WithLabelValues(backend, "in").Inc()
	return msg, true, nil
}

// NodeID returns instance when set, otherwise the hostname plus a random suffix.
func NodeID(instance string) string {
	if instance != "" {
		return instance
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "starboard"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
