/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EventBusBackend selects where scoreboard updates arrive from.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	LogLevel    string
	HTTPBind    string
	HTTPPort    int

	LogBufferSize int // recent log lines kept for /api/v1/logs

	// Overlay timing
	Preview        bool // design preview: no timers, no subscriptions
	BootstrapDelay time.Duration
	MinHold        time.Duration // hold used when a slot duration is missing or non-positive
	FadeDuration   time.Duration
	SwapDelay      time.Duration
	ColorDuration  time.Duration
	FrameRate      int // websocket frames per second while animating

	// Initial scoreboard content (YAML or TOML)
	SeedFile string

	// Scoreboard update transport
	EventBus      EventBusBackend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	InstanceID    string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads an optional .env file and environment variables, applies defaults,
// and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnvAny([]string{"STARBOARD_ENV", "SB_ENV"}, "development"),
		LogLevel:    getEnvAny([]string{"STARBOARD_LOG_LEVEL", "SB_LOG_LEVEL"}, ""),
		HTTPBind:    getEnvAny([]string{"STARBOARD_HTTP_BIND", "SB_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"STARBOARD_HTTP_PORT", "SB_HTTP_PORT"}, 8090),

		LogBufferSize: getEnvIntAny([]string{"STARBOARD_LOG_BUFFER_SIZE", "SB_LOG_BUFFER_SIZE"}, 1000),

		Preview:        getEnvBoolAny([]string{"STARBOARD_PREVIEW", "SB_PREVIEW"}, false),
		BootstrapDelay: getEnvMillisAny([]string{"STARBOARD_BOOTSTRAP_DELAY_MS", "SB_BOOTSTRAP_DELAY_MS"}, 20*time.Second),
		MinHold:        getEnvMillisAny([]string{"STARBOARD_MIN_HOLD_MS", "SB_MIN_HOLD_MS"}, 2*time.Second),
		FadeDuration:   getEnvMillisAny([]string{"STARBOARD_FADE_MS", "SB_FADE_MS"}, 300*time.Millisecond),
		SwapDelay:      getEnvMillisAny([]string{"STARBOARD_SWAP_DELAY_MS", "SB_SWAP_DELAY_MS"}, 800*time.Millisecond),
		ColorDuration:  getEnvMillisAny([]string{"STARBOARD_COLOR_FADE_MS", "SB_COLOR_FADE_MS"}, 500*time.Millisecond),
		FrameRate:      getEnvIntAny([]string{"STARBOARD_FRAME_RATE", "SB_FRAME_RATE"}, 30),

		SeedFile: getEnvAny([]string{"STARBOARD_SEED_FILE", "SB_SEED_FILE"}, ""),

		EventBus:      EventBusBackend(strings.ToLower(getEnvAny([]string{"STARBOARD_EVENT_BUS", "SB_EVENT_BUS"}, string(EventBusMemory)))),
		RedisAddr:     getEnvAny([]string{"STARBOARD_REDIS_ADDR", "SB_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"STARBOARD_REDIS_PASSWORD", "SB_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"STARBOARD_REDIS_DB", "SB_REDIS_DB"}, 0),
		NATSURL:       getEnvAny([]string{"STARBOARD_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		InstanceID:    getEnvAny([]string{"STARBOARD_INSTANCE_ID", "SB_INSTANCE_ID"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"STARBOARD_TRACING_ENABLED", "SB_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"STARBOARD_OTLP_ENDPOINT", "SB_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"STARBOARD_TRACING_SAMPLE_RATE", "SB_TRACING_SAMPLE_RATE"}, 1.0),
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.EventBus)
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("STARBOARD_HTTP_PORT out of range: %d", cfg.HTTPPort)
	}

	if cfg.MinHold <= 0 {
		return nil, fmt.Errorf("STARBOARD_MIN_HOLD_MS must be positive")
	}

	if cfg.BootstrapDelay <= 0 {
		return nil, fmt.Errorf("STARBOARD_BOOTSTRAP_DELAY_MS must be positive")
	}

	// The fade-out has to finish before the content swap.
	if cfg.SwapDelay < cfg.FadeDuration {
		return nil, fmt.Errorf("STARBOARD_SWAP_DELAY_MS (%s) must not be shorter than STARBOARD_FADE_MS (%s)", cfg.SwapDelay, cfg.FadeDuration)
	}

	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}

	if cfg.LogBufferSize < 0 {
		cfg.LogBufferSize = 0
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// loadDotEnv loads the given files, or ".env" when none are given. A missing
// default file is not an error; explicitly named files must exist.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"SUBBAR_TIME":      "slot hold durations come from the scoreboard seed (subbar[].seconds)",
		"BOOTSTRAP_DELAY":  "use STARBOARD_BOOTSTRAP_DELAY_MS",
		"TRACING_ENABLED":  "use STARBOARD_TRACING_ENABLED (or SB_TRACING_ENABLED)",
		"OTLP_ENDPOINT":    "use STARBOARD_OTLP_ENDPOINT (or SB_OTLP_ENDPOINT)",
		"STARBOARD_DESIGN": "use STARBOARD_PREVIEW",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr returns the listen address for the HTTP server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvMillisAny reads a millisecond count and returns it as a duration.
func getEnvMillisAny(keys []string, def time.Duration) time.Duration {
	ms := getEnvIntAny(keys, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
