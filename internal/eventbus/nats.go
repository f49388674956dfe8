/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/starboard/internal/events"
	"github.com/friendsincode/starboard/internal/telemetry"
)

// NATSBus implements a NATS-backed event bus. Events are published on
// SubjectPrefix + event type. If the server cannot be reached at startup the
// bus works locally only.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	local  *events.Bus
	nodeID string
	prefix string

	mu   sync.Mutex
	subs map[events.EventType]*nats.Subscription
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string

	SubjectPrefix string

	// Connection options
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "starboard.events.",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus connects to NATS.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	logger = logger.With().Str("component", "eventbus").Str("backend", "nats").Logger()

	nb := &NATSBus{
		logger: logger,
		local:  events.NewBus(),
		nodeID: nodeID,
		prefix: cfg.SubjectPrefix,
		subs:   make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("starboard-" + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := logger.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS async error")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS connection failed, using in-memory fallback")
		return nb, nil
	}
	nb.conn = conn

	logger.Info().Str("url", conn.ConnectedUrl()).Str("node_id", nodeID).Msg("NATS event bus initialized")
	return nb, nil
}

// Connected reports whether the bus forwards events to other nodes.
func (nb *NATSBus) Connected() bool {
	return nb.conn != nil && nb.conn.IsConnected()
}

// Subscribe registers a subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.local.Subscribe(eventType)
	if nb.conn == nil {
		return sub
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, exists := nb.subs[eventType]; exists {
		return sub
	}

	subject := nb.prefix + string(eventType)
	ns, err := nb.conn.Subscribe(subject, func(m *nats.Msg) {
		nb.deliver(m.Data)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("subject", subject).Msg("NATS subscribe failed, local delivery only")
		return sub
	}
	nb.subs[eventType] = ns
	return sub
}

func (nb *NATSBus) deliver(data []byte) {
	msg, delivered, err := relay(nb.local, "nats", nb.nodeID, data)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to unmarshal NATS message")
		return
	}
	if delivered {
		nb.logger.Debug().
			Str("event_type", string(msg.EventType)).
			Str("source_node", msg.NodeID).
			Msg("delivered NATS event to local subscribers")
	}
}

// Publish sends an event payload to local subscribers and other nodes.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)
	if nb.conn == nil {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}
	if err := nb.conn.Publish(nb.prefix+string(eventType), data); err != nil {
		telemetry.EventBusMessagesTotal.WithLabelValues("nats", "error").Inc()
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
		return
	}
	telemetry.EventBusMessagesTotal.WithLabelValues("nats", "out").Inc()
}

// Unsubscribe removes a subscriber. The NATS subscription for the event type
// is dropped with its last local subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.local.Subscribers(eventType) > 0 {
		return
	}
	if ns, exists := nb.subs[eventType]; exists {
		if err := ns.Unsubscribe(); err != nil {
			nb.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("NATS unsubscribe failed")
		}
		delete(nb.subs, eventType)
	}
}

// Close drains pending messages and closes the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	nb.logger.Info().Msg("closing NATS event bus")

	nb.mu.Lock()
	nb.subs = make(map[events.EventType]*nats.Subscription)
	nb.mu.Unlock()

	if err := nb.conn.Drain(); err != nil {
		nb.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
