/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package viewmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/starboard/internal/events"
	"github.com/friendsincode/starboard/internal/overlay"
	"github.com/friendsincode/starboard/internal/telemetry"
)

var (
	// ErrUnknownEvent is returned by Apply for event types it does not handle.
	ErrUnknownEvent = errors.New("viewmodel: unknown event type")
	// ErrBadPayload is returned by Apply for malformed payloads.
	ErrBadPayload = errors.New("viewmodel: malformed payload")
)

// Update is a parsed scoreboard event.
type Update struct {
	Type       events.EventType
	Competitor overlay.Competitor
	Slot       overlay.Slot
	Value      string
	Seconds    int
}

// ParseUpdate validates a scoreboard event without applying it.
//
// Payload keys: "competitor" (1 or 2) for player events, "slot" (1 to 3) for
// subbar events, "value" for the new text or color, "seconds" for subbar times.
func ParseUpdate(eventType events.EventType, payload events.Payload) (Update, error) {
	u := Update{Type: eventType}
	switch eventType {
	case events.EventPlayerColor, events.EventPlayerName, events.EventPlayerRace:
		n, err := intField(payload, "competitor")
		if err != nil {
			return u, err
		}
		u.Competitor = overlay.Competitor(n - 1)
		if !u.Competitor.Valid() {
			return u, fmt.Errorf("%w: competitor %d", overlay.ErrInvalidCompetitor, n)
		}
		u.Value, err = stringField(payload, "value")
		return u, err

	case events.EventSubbarLine, events.EventSubbarTime:
		n, err := intField(payload, "slot")
		if err != nil {
			return u, err
		}
		u.Slot = overlay.Slot(n - 1)
		if !u.Slot.Valid() {
			return u, fmt.Errorf("%w: slot %d", overlay.ErrInvalidSlot, n)
		}
		if eventType == events.EventSubbarTime {
			u.Seconds, err = intField(payload, "seconds")
		} else {
			u.Value, err = stringField(payload, "value")
		}
		return u, err

	default:
		return u, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
}

// ApplyTo writes the update into sb.
func (u Update) ApplyTo(sb *Scoreboard) error {
	switch u.Type {
	case events.EventPlayerColor:
		return sb.SetPlayerColor(u.Competitor, u.Value)
	case events.EventPlayerName:
		return sb.SetPlayerName(u.Competitor, u.Value)
	case events.EventPlayerRace:
		return sb.SetPlayerRace(u.Competitor, u.Value)
	case events.EventSubbarLine:
		return sb.SetSubbarLine(u.Slot, u.Value)
	case events.EventSubbarTime:
		return sb.SetSubbarTime(u.Slot, u.Seconds)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, u.Type)
	}
}

// Apply parses a scoreboard event and writes it into sb.
func Apply(sb *Scoreboard, eventType events.EventType, payload events.Payload) error {
	u, err := ParseUpdate(eventType, payload)
	if err == nil {
		err = u.ApplyTo(sb)
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	telemetry.ScoreboardUpdatesTotal.WithLabelValues(string(eventType), result).Inc()
	return err
}

func stringField(payload events.Payload, key string) (string, error) {
	switch v := payload[key].(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("%w: missing %q", ErrBadPayload, key)
	default:
		return "", fmt.Errorf("%w: %q is %T, want string", ErrBadPayload, key, v)
	}
}

// intField accepts the numeric forms a payload takes after a trip through
// JSON as well as plain Go integers from in-process publishers.
func intField(payload events.Payload, key string) (int, error) {
	switch v := payload[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %q is not a whole number", ErrBadPayload, key)
		}
		return int(v), nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrBadPayload, key, err)
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrBadPayload, key, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%w: missing %q", ErrBadPayload, key)
	default:
		return 0, fmt.Errorf("%w: %q is %T, want number", ErrBadPayload, key, v)
	}
}

// Follow applies scoreboard events from bus to sb until ctx is cancelled.
// Malformed events are logged and skipped.
func Follow(ctx context.Context, bus events.PubSub, sb *Scoreboard, logger zerolog.Logger) {
	logger = logger.With().Str("component", "viewmodel").Logger()

	var wg sync.WaitGroup
	for _, eventType := range events.ScoreboardEvents {
		sub := bus.Subscribe(eventType)
		wg.Add(1)
		go func(eventType events.EventType, sub events.Subscriber) {
			defer wg.Done()
			defer bus.Unsubscribe(eventType, sub)
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					if err := Apply(sb, eventType, payload); err != nil {
						logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("scoreboard update rejected")
						continue
					}
					logger.Debug().Str("event_type", string(eventType)).Msg("scoreboard updated")
				}
			}
		}(eventType, sub)
	}

	logger.Info().Int("event_types", len(events.ScoreboardEvents)).Msg("following scoreboard events")
	wg.Wait()
}
