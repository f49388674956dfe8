/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/starboard/internal/events"
	"github.com/friendsincode/starboard/internal/overlay"
	"github.com/friendsincode/starboard/internal/telemetry"
	"github.com/friendsincode/starboard/internal/version"
	"github.com/friendsincode/starboard/internal/viewmodel"
)

// overlayView is a frame plus the data the renderer needs to draw it.
type overlayView struct {
	overlay.Frame
	Text    string                                    `json:"text"`
	Players [overlay.CompetitorCount]viewmodel.Player `json:"players"`
}

type updateRequest struct {
	Type    events.EventType `json:"type"`
	Payload events.Payload   `json:"payload"`
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := s.overlay.State()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"version":   version.Version,
			"mounted":   st.Mounted,
			"preview":   st.Preview,
			"event_bus": string(s.cfg.EventBus),
		})
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/overlay", s.handleOverlay)
		r.Post("/overlay/mount", s.handleMount)
		r.Post("/overlay/unmount", s.handleUnmount)
		r.Get("/scoreboard", s.handleScoreboard)
		r.Post("/scoreboard/events", s.handleScoreboardEvent)
		r.Get("/logs", s.handleLogs)
	})

	s.router.Get("/ws/overlay", s.handleOverlayFeed)
}

func (s *Server) view() overlayView {
	frame := s.overlay.State().Frame(s.clock.Now())
	snap := s.scoreboard.Snapshot()

	v := overlayView{Frame: frame, Players: snap.Players}
	if frame.Label != "" {
		if text, err := s.scoreboard.Text(overlay.Label(frame.Label)); err == nil {
			v.Text = text
		}
	}
	return v
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	if err := s.mountOverlay(); err != nil {
		s.logger.Warn().Err(err).Msg("overlay mount reported errors")
		writeError(w, http.StatusBadGateway, "mount_incomplete")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mounted": true})
}

func (s *Server) handleUnmount(w http.ResponseWriter, r *http.Request) {
	if err := s.unmountOverlay(); err != nil {
		s.logger.Warn().Err(err).Msg("overlay unmount reported errors")
		writeError(w, http.StatusBadGateway, "unmount_incomplete")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mounted": false})
}

func (s *Server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scoreboard.Snapshot())
}

// handleScoreboardEvent validates an update and publishes it on the event
// bus. It is applied by the bus follower, on this node and on every other
// node sharing the bus.
func (s *Server) handleScoreboardEvent(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if _, err := viewmodel.ParseUpdate(req.Type, req.Payload); err != nil {
		code := "invalid_payload"
		if errors.Is(err, viewmodel.ErrUnknownEvent) {
			code = "unknown_event"
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": code, "detail": err.Error()})
		return
	}

	s.bus.Publish(req.Type, req.Payload)
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "type": req.Type})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
