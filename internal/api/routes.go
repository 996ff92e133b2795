package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/vytor/promptfix/internal/metrics"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/games", s.handleStartGame)
		r.Route("/games/{username}", func(r chi.Router) {
			r.Get("/", s.handleGameSummary)
			r.Get("/prompt", s.handleCurrentPrompt)
			r.Post("/rounds", s.handleSubmitRound)
			r.Get("/rounds/ws", s.handleSubmitRoundStream)
			r.Post("/end", s.handleEndGame)
		})
		r.Get("/players/{username}", s.handlePlayerHistory)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/stats", s.handleStats)
		r.Get("/dashboard", s.handleDashboard)
	})
	return r
}
