/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OverlayRotationsTotal counts subbar rotations by the slot entered.
	OverlayRotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starboard_overlay_rotations_total",
		Help: "Subbar rotations, labelled by the slot that became active",
	}, []string{"slot"})

	// OverlayHoldSeconds records the hold duration armed after each rotation.
	OverlayHoldSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "starboard_overlay_hold_seconds",
		Help:    "Hold duration scheduled for the active subbar slot",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 60, 120, 300},
	})

	// OverlayHoldFallbacksTotal counts holds replaced by the minimum interval.
	OverlayHoldFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starboard_overlay_hold_fallbacks_total",
		Help: "Slot hold durations replaced by the minimum interval",
	}, []string{"reason"})

	// OverlayStaleCallbacksTotal counts deferred callbacks discarded after
	// teardown, rebinding or supersession.
	OverlayStaleCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starboard_overlay_stale_callbacks_total",
		Help: "Deferred overlay callbacks discarded without mutating state",
	}, []string{"kind"})

	// OverlayTransitionsTotal counts fade transitions started.
	OverlayTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starboard_overlay_transitions_total",
		Help: "Subbar fade transitions started",
	})

	// OverlayColorChangesTotal counts competitor color retargets.
	OverlayColorChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starboard_overlay_color_changes_total",
		Help: "Competitor color animations started",
	}, []string{"competitor"})

	// OverlayBindingsTotal counts data source subscribe/unsubscribe operations.
	OverlayBindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starboard_overlay_bindings_total",
		Help: "Data source binding operations",
	}, []string{"op", "result"})

	// OverlayActiveTimers tracks timer handles currently held by overlays.
	OverlayActiveTimers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "starboard_overlay_active_timers",
		Help: "Scheduled overlay callbacks not yet fired or cancelled",
	}, []string{"kind"})

	// DispatchTasksTotal counts tasks run on the UI loop.
	DispatchTasksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starboard_dispatch_tasks_total",
		Help: "Tasks executed on the UI loop",
	})

	// DispatchPanicsTotal counts recovered task panics.
	DispatchPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starboard_dispatch_panics_total",
		Help: "Tasks on the UI loop that panicked and were recovered",
	})

	// DispatchQueueDepth reports pending tasks on the UI loop.
	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starboard_dispatch_queue_depth",
		Help: "Tasks waiting on the UI loop",
	})

	// ScoreboardUpdatesTotal counts scoreboard update events applied.
	ScoreboardUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starboard_scoreboard_updates_total",
		Help: "Scoreboard update events by type and result",
	}, []string{"event", "result"})

	// EventBusMessagesTotal counts messages crossing a remote event bus.
	EventBusMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starboard_eventbus_messages_total",
		Help: "Event bus messages by backend and direction",
	}, []string{"backend", "direction"})

	// RenderClients tracks connected websocket render clients.
	RenderClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starboard_render_clients",
		Help: "Websocket clients receiving overlay frames",
	})

	// APIRequestsTotal counts HTTP requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starboard_api_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starboard_api_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starboard_api_active_connections",
		Help: "In-flight HTTP requests",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
