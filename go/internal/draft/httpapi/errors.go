package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/draft/session"
	"github.com/mcdev12/livedraft/go/internal/leagues"
	"github.com/mcdev12/livedraft/go/internal/player"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var inconsistent *session.DataInconsistencyError
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, leagues.ErrLeagueNotFound),
		errors.Is(err, player.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrValidation),
		errors.Is(err, leagues.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrVersionConflict),
		errors.Is(err, session.ErrDraftCompleted),
		errors.Is(err, session.ErrDraftPaused),
		errors.Is(err, session.ErrPickOutOfOrder),
		errors.As(err, &inconsistent):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
