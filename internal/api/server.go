package api

import (
	"github.com/vytor/promptfix/internal/services"
)

// Server exposes the game over HTTP and WebSocket.
type Server struct {
	Games       services.GameService
	CORSOrigins []string
}

func NewServer(games services.GameService, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &Server{Games: games, CORSOrigins: corsOrigins}
}
