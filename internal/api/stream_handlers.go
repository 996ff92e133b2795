package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vytor/promptfix/internal/logger"
)

const (
	streamReadTimeout  = 10 * time.Minute
	streamWriteTimeout = 10 * time.Second
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.allowOrigin,
	}
}

// allowOrigin applies the CORS origin list to WebSocket handshakes. Requests
// without an Origin header are not from a browser and are allowed.
func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// streamFrame is one server-to-client WebSocket message.
type streamFrame struct {
	Type    string     `json:"type"`
	Content string     `json:"content,omitempty"`
	Result  any        `json:"result,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

// handleSubmitRoundStream accepts {"prompt": "..."} messages and answers each
// with the generated response as chunk frames in generation order, followed
// by a result or error frame.
func (s *Server) handleSubmitRoundStream(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	log := logger.FromContext(r.Context()).WithPrefix("round_stream").WithField("username", username)

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	write := func(f streamFrame) error {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(f)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		var req submitRoundRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read error: %v", err)
			}
			return
		}

		var writeErr error
		result, err := s.Games.SubmitRound(r.Context(), username, req.Prompt, func(chunk string) {
			if writeErr == nil {
				writeErr = write(streamFrame{Type: "chunk", Content: chunk})
			}
		})
		if writeErr != nil {
			log.Warn("client went away during streaming: %v", writeErr)
			return
		}

		if err != nil {
			appErr := toAppError(err)
			log.Warn("round submission failed: %v", appErr)
			if err := write(streamFrame{Type: "error", Error: &errorBody{Code: appErr.Code, Message: appErr.Message}}); err != nil {
				return
			}
			continue
		}
		if err := write(streamFrame{Type: "result", Result: result}); err != nil {
			log.Warn("failed to send result: %v", err)
			return
		}
	}
}
