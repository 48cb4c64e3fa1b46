package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/draft/session"
	"github.com/mcdev12/livedraft/go/internal/models"
)

// SessionReader confirms a session exists before a client subscribes to it.
type SessionReader interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
}

// WebSocketHandler handles WebSocket upgrade requests for session streams
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	sessions          SessionReader
}

func NewWebSocketHandler(cm *ConnectionManager, sessions SessionReader) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		sessions:          sessions,
	}
}

// HandleSessionConnection upgrades GET /ws/sessions/{id}.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	s, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to load session for websocket")
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	// Upgrade writes its own error response on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, s.UserID.String(), sessionID); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("failed to upgrade websocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.connectionManager.Stats())
}

// RegisterRoutes mounts the websocket routes on r.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/sessions/{id}", h.HandleSessionConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
