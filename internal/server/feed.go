/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/starboard/internal/telemetry"
)

// handleOverlayFeed streams overlay views to a renderer. A view is sent on
// connect and then whenever it changes, sampled at the configured frame rate.
func (s *Server) handleOverlayFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.RenderClients.Inc()
	defer telemetry.RenderClients.Dec()

	// Renderers never send anything; reading only processes control frames.
	ctx := conn.CloseRead(r.Context())
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("render client connected")

	last := s.view()
	if err := s.writeView(ctx, conn, last); err != nil {
		s.logger.Debug().Err(err).Msg("initial frame failed")
		return
	}

	ticker := s.clock.NewTicker(frameInterval(s.cfg.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return

		case <-ticker.C():
			v := s.view()
			if v.Frame.Equal(last.Frame) && v.Text == last.Text && v.Players == last.Players {
				continue
			}
			if err := s.writeView(ctx, conn, v); err != nil {
				s.logger.Debug().Err(err).Msg("render client write failed")
				return
			}
			last = v
		}
	}
}

func (s *Server) writeView(ctx context.Context, conn *ws.Conn, v overlayView) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}
