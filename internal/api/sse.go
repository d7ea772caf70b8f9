// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/log"
)

// handleEvents streams status snapshots as server-sent events. One event per
// monitor tick; the connection ends when the client goes away or the
// subscription is torn down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "streaming unsupported",
		})
		return
	}

	id, ch := s.stream.Subscribe()
	defer s.stream.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := log.WithComponentFromContext(r.Context(), "sse")
	logger.Debug().Uint64("subscriber", id).Msg("status stream opened")

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Uint64("subscriber", id).Msg("status stream closed")
			return
		case snap, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				logger.Warn().Err(err).Msg("encode snapshot")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
