package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// SessionReader loads a draft session by id.
type SessionReader interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
}

// LeagueReader loads a league by id.
type LeagueReader interface {
	GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error)
}

// PlayerPool lists the draftable players for a season.
type PlayerPool interface {
	ListPlayers(ctx context.Context, season string) ([]models.Player, error)
}

// Result is what callers get back. Stale results are still usable; they only
// warn that the draft state behind them may be behind upstream.
type Result struct {
	SessionID       uuid.UUID        `json:"session_id"`
	CurrentPick     int              `json:"current_pick"`
	Round           int              `json:"round"`
	UserOnClock     bool             `json:"user_on_clock"`
	Recommendations []Recommendation `json:"recommendations"`
	Stale           bool             `json:"stale"`
	StaleReason     string           `json:"stale_reason,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

type Service struct {
	engine   *Engine
	sessions SessionReader
	leagues  LeagueReader
	players  PlayerPool
	clock    clockwork.Clock

	// last good result per session, served when the pool is unreachable
	cache *xsync.Map[uuid.UUID, Result]
}

func NewService(engine *Engine, sessions SessionReader, leagues LeagueReader, players PlayerPool, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		engine:   engine,
		sessions: sessions,
		leagues:  leagues,
		players:  players,
		clock:    clock,
		cache:    xsync.NewMap[uuid.UUID, Result](),
	}
}

// Recommend ranks the pool for a session. Sync trouble never fails the call:
// the result is flagged stale instead.
func (s *Service) Recommend(ctx context.Context, sessionID uuid.UUID, topK int) (*Result, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	league, err := s.leagues.GetLeague(ctx, sess.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get league: %w", err)
	}

	pool, err := s.players.ListPlayers(ctx, league.Season)
	if err != nil {
		cached, ok := s.cache.Load(sessionID)
		if !ok {
			return nil, fmt.Errorf("failed to list players: %w", err)
		}
		log.Warn().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("player pool unavailable, serving cached recommendations")
		cached.Stale = true
		cached.StaleReason = "player pool unavailable, showing last known recommendations"
		return &cached, nil
	}

	res := Result{
		SessionID:       sessionID,
		CurrentPick:     sess.CurrentPick,
		Round:           sess.CurrentRound,
		UserOnClock:     sess.UserOnClock,
		Recommendations: s.engine.Recommend(sess, league, pool, topK),
		GeneratedAt:     s.clock.Now().UTC(),
	}
	if sess.HasRecentSyncErrors() {
		last := sess.SyncErrors[len(sess.SyncErrors)-1]
		res.Stale = true
		res.StaleReason = fmt.Sprintf("live sync failing since %s: %s",
			last.OccurredAt.Format(time.RFC3339), last.Message)
	}
	if sess.NeedsCredentialUpdate {
		res.Stale = true
		res.StaleReason = "upstream credentials need to be updated"
	}

	s.cache.Store(sessionID, res)
	return &res, nil
}
