/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/starboard/internal/events"
	"github.com/friendsincode/starboard/internal/telemetry"
)

// RedisBus implements a Redis-backed event bus for multi-instance overlays.
//
// Local subscribers always receive events through the in-process bus. When
// Redis fails repeatedly the bus keeps working locally and retries Redis
// after CheckInterval.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger
	local  *events.Bus
	nodeID string
	prefix string

	mu       sync.Mutex
	channels map[events.EventType]*redis.PubSub
	wanted   map[events.EventType]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Circuit breaker state
	useFallback   bool
	failCount     int
	maxFails      int
	checkInterval time.Duration
	lastCheck     time.Time
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Channel names are Prefix + event type.
	Prefix string

	// Connection pooling
	PoolSize     int
	MinIdleConns int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		Prefix:        "starboard:",
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// NewRedisBus creates a Redis-backed event bus. If Redis is unreachable the
// bus starts in local-only mode instead of failing.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With().Str("component", "eventbus").Str("backend", "redis").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	rb := &RedisBus{
		client:        client,
		logger:        logger,
		local:         events.NewBus(),
		nodeID:        nodeID,
		prefix:        cfg.Prefix,
		channels:      make(map[events.EventType]*redis.PubSub),
		wanted:        make(map[events.EventType]struct{}),
		ctx:           ctx,
		cancel:        cancel,
		maxFails:      cfg.MaxFailures,
		checkInterval: cfg.CheckInterval,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis connection failed, using in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
		return rb, nil
	}

	logger.Info().Str("addr", cfg.Addr).Str("node_id", nodeID).Msg("Redis event bus initialized")
	return rb, nil
}

// Subscribe registers a subscriber for an event type.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.local.Subscribe(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.wanted[eventType] = struct{}{}
	if !rb.useFallback {
		rb.listenLocked(eventType)
	}
	return sub
}

// listenLocked starts a Redis subscription for eventType if there is none.
func (rb *RedisBus) listenLocked(eventType events.EventType) {
	if _, exists := rb.channels[eventType]; exists {
		return
	}
	pubsub := rb.client.Subscribe(rb.ctx, rb.prefix+string(eventType))
	rb.channels[eventType] = pubsub

	rb.wg.Add(1)
	go rb.receiveMessages(eventType, pubsub)
}

// receiveMessages relays messages from other nodes to local subscribers.
func (rb *RedisBus) receiveMessages(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()

	ch := pubsub.Channel()
	rb.logger.Debug().Str("event_type", string(eventType)).Msg("started Redis message receiver")

	for {
		select {
		case <-rb.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				rb.logger.Debug().Str("event_type", string(eventType)).Msg("Redis channel closed")
				return
			}
			rb.deliver([]byte(msg.Payload))
		}
	}
}

func (rb *RedisBus) deliver(data []byte) {
	msg, delivered, err := relay(rb.local, "redis", rb.nodeID, data)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to unmarshal Redis message")
		return
	}
	if delivered {
		rb.logger.Debug().
			Str("event_type", string(msg.EventType)).
			Str("source_node", msg.NodeID).
			Msg("delivered Redis event to local subscribers")
	}
}

// Publish sends an event payload to local subscribers and, unless Redis is
// unavailable, to other nodes.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	if !rb.remoteAvailable() {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal Redis message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()

	if err := rb.client.Publish(ctx, rb.prefix+string(eventType), data).Err(); err != nil {
		telemetry.EventBusMessagesTotal.WithLabelValues("redis", "error").Inc()
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		rb.handleFailure()
		return
	}
	telemetry.EventBusMessagesTotal.WithLabelValues("redis", "out").Inc()

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a subscriber. The Redis subscription for the event type
// is closed with its last local subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.local.Subscribers(eventType) > 0 {
		return
	}
	if pubsub, exists := rb.channels[eventType]; exists {
		pubsub.Close()
		delete(rb.channels, eventType)
		rb.logger.Debug().Str("event_type", string(eventType)).Msg("closed Redis subscription")
	}
}

// Close closes the Redis connection and all subscriptions.
func (rb *RedisBus) Close() error {
	rb.logger.Info().Msg("closing Redis event bus")
	rb.cancel()

	rb.mu.Lock()
	for eventType, pubsub := range rb.channels {
		pubsub.Close()
		delete(rb.channels, eventType)
	}
	rb.mu.Unlock()

	rb.wg.Wait()

	if err := rb.client.Close(); err != nil {
		rb.logger.Error().Err(err).Msg("failed to close Redis client")
		return err
	}
	return nil
}

// remoteAvailable reports whether Redis should be used, retrying a tripped
// circuit breaker once per check interval.
func (rb *RedisBus) remoteAvailable() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.useFallback {
		return true
	}
	if time.Since(rb.lastCheck) < rb.checkInterval {
		return false
	}
	rb.lastCheck = time.Now()

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Ping(ctx).Err(); err != nil {
		rb.logger.Debug().Err(err).Msg("Redis still unavailable")
		return false
	}

	rb.useFallback = false
	rb.failCount = 0
	for eventType := range rb.wanted {
		if rb.local.Subscribers(eventType) > 0 {
			rb.listenLocked(eventType)
		}
	}
	rb.logger.Info().Msg("reconnected to Redis, disabling fallback")
	return true
}

// handleFailure implements circuit breaker logic.
func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().
			Int("fail_count", rb.failCount).
			Msg("Redis failure threshold reached, switching to in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
	}
}
