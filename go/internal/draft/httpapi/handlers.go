// Package httpapi exposes sessions, leagues, recommendations and engine status
// over JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/draft/livesync"
	"github.com/mcdev12/livedraft/go/internal/draft/session"
	"github.com/mcdev12/livedraft/go/internal/leagues"
	"github.com/mcdev12/livedraft/go/internal/models"
	"github.com/mcdev12/livedraft/go/internal/player"
	"github.com/mcdev12/livedraft/go/internal/recommend"
)

// Sessions is the session application layer.
type Sessions interface {
	CreateSession(ctx context.Context, req session.CreateSessionRequest) (*models.DraftSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	StartDraft(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	PauseDraft(ctx context.Context, id uuid.UUID, reason string) (*models.DraftSession, error)
	ResumeDraft(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	SetSyncMode(ctx context.Context, id uuid.UUID, mode models.SyncMode) (*models.DraftSession, error)
	RecordManualPick(ctx context.Context, id uuid.UUID, req session.ManualPickRequest) (*models.DraftSession, error)
}

type Leagues interface {
	CreateLeague(ctx context.Context, req leagues.CreateLeagueRequest) (*models.League, error)
	GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error)
	ListLeagues(ctx context.Context) ([]models.League, error)
}

type Players interface {
	GetPlayer(ctx context.Context, season, playerID string) (*models.Player, error)
}

type Recommender interface {
	Recommend(ctx context.Context, sessionID uuid.UUID, topK int) (*recommend.Result, error)
}

// Syncer is the live sync engine.
type Syncer interface {
	Status() livesync.Status
	SyncSession(ctx context.Context, id uuid.UUID) (livesync.Outcome, error)
}

type Handler struct {
	sessions    Sessions
	leagues     Leagues
	players     Players
	recommender Recommender
	syncer      Syncer
}

func NewHandler(sessions Sessions, leagues Leagues, players Players, recommender Recommender, syncer Syncer) *Handler {
	return &Handler{
		sessions:    sessions,
		leagues:     leagues,
		players:     players,
		recommender: recommender,
		syncer:      syncer,
	}
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

type syncModeRequest struct {
	Mode models.SyncMode `json:"mode"`
}

type syncResponse struct {
	SessionID uuid.UUID        `json:"session_id"`
	Outcome   livesync.Outcome `json:"outcome"`
	Error     string           `json:"error,omitempty"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateSessionRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.sessions.CreateSession(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) StartDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sessions.StartDraft)
}

func (h *Handler) ResumeDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sessions.ResumeDraft)
}

func (h *Handler) PauseDraft(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	h.transition(w, r, func(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
		return h.sessions.PauseDraft(ctx, id, req.Reason)
	})
}

func (h *Handler) SetSyncMode(w http.ResponseWriter, r *http.Request) {
	var req syncModeRequest
	if !decode(w, r, &req) {
		return
	}
	h.transition(w, r, func(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
		return h.sessions.SetSyncMode(ctx, id, req.Mode)
	})
}

// RecordPick accepts a manual pick. Missing player details are filled from
// the league's projection pool when the player is known there.
func (h *Handler) RecordPick(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req session.ManualPickRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlayerID != "" && (req.PlayerName == "" || req.Position == "") {
		h.fillPlayer(r.Context(), id, &req)
	}

	s, err := h.sessions.RecordManualPick(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) fillPlayer(ctx context.Context, sessionID uuid.UUID, req *session.ManualPickRequest) {
	if h.players == nil {
		return
	}
	s, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return
	}
	league, err := h.leagues.GetLeague(ctx, s.LeagueID)
	if err != nil {
		return
	}
	p, err := h.players.GetPlayer(ctx, league.Season, req.PlayerID)
	if err != nil {
		if !errors.Is(err, player.ErrPlayerNotFound) {
			log.Warn().Err(err).Str("player_id", req.PlayerID).Msg("failed to look up player for manual pick")
		}
		return
	}
	if req.PlayerName == "" {
		req.PlayerName = p.FullName
	}
	if req.Position == "" {
		req.Position = string(p.Position)
	}
	if req.NFLTeam == "" {
		req.NFLTeam = p.NFLTeam
	}
}

func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	res, err := h.recommender.Recommend(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SyncNow runs one sync for the session outside the engine's timer.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	outcome, err := h.syncer.SyncSession(r.Context(), id)
	if err != nil && errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, r, err)
		return
	}
	resp := syncResponse{SessionID: id, Outcome: outcome}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.syncer.Status())
}

func (h *Handler) CreateLeague(w http.ResponseWriter, r *http.Request) {
	var req leagues.CreateLeagueRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := h.leagues.CreateLeague(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) GetLeague(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	l, err := h.leagues.GetLeague(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	ls, err := h.leagues.ListLeagues(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*models.DraftSession, error)) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
