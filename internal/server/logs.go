/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/starboard/internal/logbuffer"
)

const defaultLogLimit = 200

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_disabled")
		return
	}

	q := r.URL.Query()
	params := logbuffer.Query{
		Component: q.Get("component"),
		Search:    q.Get("search"),
		Limit:     defaultLogLimit,
		Newest:    q.Get("order") != "asc",
	}

	if level := q.Get("level"); level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_level")
			return
		}
		params.MinLevel = lvl
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = t
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = n
	}

	entries := s.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"count":      len(entries),
		"components": s.logBuffer.Components(),
		"stats":      s.logBuffer.Stats(),
	})
}
