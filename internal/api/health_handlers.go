package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vytor/promptfix/internal/logger"
)

const readyTimeout = 2 * time.Second

// handleHealth is the liveness check; it always returns 200 OK.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleReady returns 200 when the player store answers a ping, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Games.Ready(ctx); err != nil {
		logger.FromContext(ctx).Warn("readiness check failed - player store: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Player store unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
