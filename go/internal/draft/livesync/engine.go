// Package livesync polls the upstream pick feed for every live session and
// reconciles what it finds into local state.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
	"github.com/mcdev12/livedraft/go/internal/draft/feed"
	"github.com/mcdev12/livedraft/go/internal/draft/session"
	"github.com/mcdev12/livedraft/go/internal/models"
)

var (
	// ErrSyncStopped is reported by Err after the engine halted itself because
	// too many consecutive cycles failed.
	ErrSyncStopped = errors.New("live sync stopped after repeated cycle failures")

	ErrAlreadyRunning = errors.New("live sync engine is already running")
)

// Config controls polling cadence and failure handling.
type Config struct {
	PollInterval           time.Duration `yaml:"poll_interval" env:"SYNC_POLL_INTERVAL"`
	MaxBackoff             time.Duration `yaml:"max_backoff" env:"SYNC_MAX_BACKOFF"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" env:"SYNC_MAX_FAILURES"`
	FetchTimeout           time.Duration `yaml:"fetch_timeout" env:"SYNC_FETCH_TIMEOUT"`
	Workers                int           `yaml:"workers" env:"SYNC_WORKERS"`
	MaxSyncErrors          int           `yaml:"max_sync_errors"`
}

func DefaultConfig() Config {
	return Config{
		PollInterval:           5 * time.Second,
		MaxBackoff:             60 * time.Second,
		MaxConsecutiveFailures: 5,
		FetchTimeout:           feed.DefaultTimeout,
		Workers:                4,
		MaxSyncErrors:          session.DefaultMaxSyncErrors,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxBackoff < c.PollInterval {
		c.MaxBackoff = d.MaxBackoff
		if c.MaxBackoff < c.PollInterval {
			c.MaxBackoff = c.PollInterval
		}
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = d.MaxConsecutiveFailures
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxSyncErrors <= 0 {
		c.MaxSyncErrors = d.MaxSyncErrors
	}
	return c
}

// Outcome is what happened to one session in one cycle.
type Outcome string

const (
	OutcomeSynced          Outcome = "synced"
	OutcomeSkippedBusy     Outcome = "skipped_busy"
	OutcomeSkippedInactive Outcome = "skipped_inactive"
	OutcomeSkippedDebounce Outcome = "skipped_debounce"
	OutcomeTransient       Outcome = "transient_error"
	OutcomeAuth            Outcome = "auth_error"
	OutcomeFeedError       Outcome = "feed_error"
	OutcomeConflict        Outcome = "version_conflict"
	OutcomeFailed          Outcome = "failed"
)

// Skipped reports outcomes where the feed was never consulted.
func (o Outcome) Skipped() bool {
	return o == OutcomeSkippedBusy || o == OutcomeSkippedInactive || o == OutcomeSkippedDebounce
}

// CycleReport summarises one pass over the syncable sessions.
type CycleReport struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Sessions  int               `json:"sessions"`
	Attempted int               `json:"attempted"`
	Outcomes  map[Outcome]int   `json:"outcomes"`
	Failed    bool              `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Status is a point-in-time view of the engine for health endpoints.
type Status struct {
	Running             bool          `json:"running"`
	Interval            time.Duration `json:"interval"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastCycle           *CycleReport  `json:"last_cycle,omitempty"`
	Error               string        `json:"error,omitempty"`
}

// Engine runs sync cycles on a timer. Sessions are reconciled concurrently up
// to Config.Workers, one at a time per session via the shared locker.
type Engine struct {
	store    session.Store
	leagues  session.LeagueReader
	feed     feed.PickFeed
	notifier session.Notifier
	locker   *session.Locker
	clock    clockwork.Clock
	metrics  MetricsCollector
	cfg      Config

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	done      chan struct{}
	err       error
	interval  time.Duration
	failures  int
	lastCycle *CycleReport
}

func NewEngine(
	store session.Store,
	leagues session.LeagueReader,
	pf feed.PickFeed,
	notifier session.Notifier,
	locker *session.Locker,
	clock clockwork.Clock,
	metrics MetricsCollector,
	cfg Config,
) *Engine {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	if locker == nil {
		locker = session.NewLocker()
	}
	done := make(chan struct{})
	close(done)
	return &Engine{
		store:    store,
		leagues:  leagues,
		feed:     feed.WithTimeout(pf, cfg.FetchTimeout),
		notifier: notifier,
		locker:   locker,
		clock:    clock,
		metrics:  metrics,
		cfg:      cfg,
		done:     done,
		interval: cfg.PollInterval,
	}
}

// Start launches the polling loop and returns immediately. The first cycle
// runs right away.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	e.err = nil
	e.failures = 0
	e.interval = e.cfg.PollInterval
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})

	log.Info().
		Dur("poll_interval", e.cfg.PollInterval).
		Int("workers", e.cfg.Workers).
		Msg("live sync engine started")

	go e.run(ctx, e.stopCh, e.done)
	return nil
}

// Stop asks the loop to exit and waits for the in-flight cycle to finish or
// ctx to expire.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the loop exits.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Err returns ErrSyncStopped once the engine halted itself, nil otherwise.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Running:             e.running,
		Interval:            e.interval,
		ConsecutiveFailures: e.failures,
		LastCycle:           e.lastCycle,
	}
	if e.err != nil {
		st.Error = e.err.Error()
	}
	return st
}

func (e *Engine) run(ctx context.Context, stopCh <-chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		// a cycle that started always completes, even if ctx is cancelled mid-way
		report, err := e.RunCycle(context.WithoutCancel(ctx))
		if err != nil {
			log.Error().Err(err).Msg("sync cycle failed")
		}
		if e.afterCycle(report) {
			e.finish(ErrSyncStopped)
			return
		}

		select {
		case <-ctx.Done():
			e.finish(nil)
			return
		case <-stopCh:
			e.finish(nil)
			return
		case <-e.clock.After(e.currentInterval()):
		}
	}
}

func (e *Engine) currentInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// afterCycle applies backoff and reports whether the engine must stop.
func (e *Engine) afterCycle(report CycleReport) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastCycle = &report
	halt := false
	if report.Failed {
		e.failures++
		e.interval *= 2
		if e.interval > e.cfg.MaxBackoff {
			e.interval = e.cfg.MaxBackoff
		}
		log.Warn().
			Int("consecutive_failures", e.failures).
			Dur("next_interval", e.interval).
			Msg("sync cycle failed, backing off")
		halt = e.failures >= e.cfg.MaxConsecutiveFailures
	} else {
		if e.failures > 0 {
			log.Info().Int("after_failures", e.failures).Msg("sync recovered")
		}
		e.failures = 0
		e.interval = e.cfg.PollInterval
	}
	e.metrics.RecordBackoff(e.interval, e.failures)
	return halt
}

func (e *Engine) finish(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.err = err
	if err != nil {
		log.Error().
			Err(err).
			Int("consecutive_failures", e.failures).
			Msg("live sync engine halted")
		return
	}
	log.Info().Msg("live sync engine stopped")
}

// RunCycle syncs every syncable session once. The cycle counts as failed when
// the session list cannot be read or every attempted fetch failed transiently.
func (e *Engine) RunCycle(ctx context.Context) (report CycleReport, err error) {
	start := e.clock.Now()
	report = CycleReport{StartedAt: start, Outcomes: make(map[Outcome]int)}
	defer func() {
		report.Duration = e.clock.Since(start)
		e.metrics.RecordCycle(report)
	}()

	ids, err := e.store.ListSyncable(ctx)
	if err != nil {
		report.Failed = true
		return report, fmt.Errorf("failed to list syncable sessions: %w", err)
	}
	report.Sessions = len(ids)

	outcomes := make([]Outcome, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i], errs[i] = e.SyncSession(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		report.Outcomes[o]++
		if !o.Skipped() {
			report.Attempted++
		}
		if errs[i] != nil {
			if report.Errors == nil {
				report.Errors = make(map[string]string)
			}
			report.Errors[ids[i].String()] = errs[i].Error()
		}
	}
	report.Failed = report.Attempted > 0 && report.Outcomes[OutcomeTransient] == report.Attempted

	log.Debug().
		Int("sessions", report.Sessions).
		Int("attempted", report.Attempted).
		Int("synced", report.Outcomes[OutcomeSynced]).
		Int("transient", report.Outcomes[OutcomeTransient]).
		Bool("failed", report.Failed).
		Msg("sync cycle finished")
	return report, nil
}

// SyncSession fetches and reconciles one session. A session already held by
// another sync or a manual pick is skipped, not waited on.
func (e *Engine) SyncSession(ctx context.Context, id uuid.UUID) (Outcome, error) {
	unlock, ok := e.locker.TryLock(id)
	if !ok {
		e.metrics.RecordSessionSync(OutcomeSkippedBusy, 0)
		return OutcomeSkippedBusy, nil
	}
	defer unlock()

	start := e.clock.Now()
	outcome, err := e.syncLocked(ctx, id)
	e.metrics.RecordSessionSync(outcome, e.clock.Since(start))

	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", id.String()).
			Str("outcome", string(outcome)).
			Msg("session sync did not complete")
	}
	return outcome, err
}

func (e *Engine) syncLocked(ctx context.Context, id uuid.UUID) (Outcome, error) {
	s, err := e.store.Load(ctx, id)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to load session: %w", err)
	}
	if !syncable(s) {
		return OutcomeSkippedInactive, nil
	}

	now := e.clock.Now().UTC()
	if s.LastSyncAt != nil && now.Sub(*s.LastSyncAt) < e.cfg.PollInterval {
		return OutcomeSkippedDebounce, nil
	}

	league, err := e.leagues.GetLeague(ctx, s.LeagueID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to get league: %w", err)
	}

	res, err := e.feed.Fetch(feed.WithSessionToken(ctx, s.SessionToken), league.ExternalLeagueID, league.Season)
	switch {
	case err == nil:
		return e.apply(ctx, s, res, now)
	case feed.IsAuth(err):
		return e.handleAuth(ctx, s, err, now)
	case feed.IsTransient(err):
		return e.handleFetchError(ctx, s, err, now, OutcomeTransient)
	default:
		return e.handleFetchError(ctx, s, err, now, OutcomeFeedError)
	}
}

func syncable(s *models.DraftSession) bool {
	if !s.SyncMode.PollsFeed() {
		return false
	}
	return s.Status == models.DraftStatusNotStarted || s.Status == models.DraftStatusInProgress
}

// handleFetchError logs the failure on the session. LastSyncAt is left alone
// so the next cycle retries immediately.
func (e *Engine) handleFetchError(ctx context.Context, s *models.DraftSession, fetchErr error, now time.Time, outcome Outcome) (Outcome, error) {
	kind := models.SyncErrorTransient
	if outcome == OutcomeFeedError {
		kind = models.SyncErrorFeed
	}
	s.RecordSyncError(models.SyncError{
		Kind:       kind,
		Message:    fetchErr.Error(),
		OccurredAt: now,
	}, e.cfg.MaxSyncErrors)

	if o, err := e.save(ctx, s); err != nil {
		return o, err
	}

	e.emit(ctx, s.ID, []events.Event{events.SyncError{
		Kind:                kind,
		Message:             fetchErr.Error(),
		ConsecutiveFailures: consecutiveFetchFailures(s),
		OccurredAt:          now,
	}})
	return outcome, fmt.Errorf("failed to fetch picks: %w", fetchErr)
}

func (e *Engine) handleAuth(ctx context.Context, s *models.DraftSession, authErr error, now time.Time) (Outcome, error) {
	s.NeedsCredentialUpdate = true
	s.SyncMode = models.SyncModePaused
	s.RecordSyncError(models.SyncError{
		Kind:       models.SyncErrorAuth,
		Message:    authErr.Error(),
		OccurredAt: now,
	}, e.cfg.MaxSyncErrors)

	if o, err := e.save(ctx, s); err != nil {
		return o, err
	}

	log.Warn().
		Str("session_id", s.ID.String()).
		Msg("upstream rejected credentials, live sync paused")

	e.emit(ctx, s.ID, []events.Event{events.AuthRequired{
		Message:    "upstream rejected the session credentials; update them to resume live sync",
		OccurredAt: now,
	}})
	return OutcomeAuth, fmt.Errorf("failed to fetch picks: %w", authErr)
}

func (e *Engine) apply(ctx context.Context, s *models.DraftSession, res *feed.Result, now time.Time) (Outcome, error) {
	var evs []events.Event

	if res.DraftInProgress {
		begun, err := session.Begin(s, "upstream draft started", now)
		if err != nil {
			return OutcomeFailed, err
		}
		evs = append(evs, begun...)
	}

	rec, err := session.Reconcile(s, session.ReconcileInput{
		Picks:           res.Picks,
		CurrentPickTeam: res.CurrentPickTeam,
		Now:             now,
		MaxSyncErrors:   e.cfg.MaxSyncErrors,
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to reconcile picks: %w", err)
	}
	evs = append(evs, rec.Events...)

	if res.DraftCompleted && s.Status != models.DraftStatusCompleted {
		// the user is never on the clock in a finished draft
		evs = withoutOnClock(evs)
		completed, err := session.Complete(s, "upstream reports draft complete", now)
		if err != nil {
			return OutcomeFailed, err
		}
		evs = append(evs, completed...)
	}

	s.LastSyncAt = &now
	if o, err := e.save(ctx, s); err != nil {
		return o, err
	}

	if rec.HintDiverged {
		e.metrics.RecordHintDivergence()
	}
	e.emit(ctx, s.ID, evs)

	if len(rec.Applied) > 0 || len(rec.Conflicts) > 0 {
		log.Info().
			Str("session_id", s.ID.String()).
			Int("applied", len(rec.Applied)).
			Int("duplicates", rec.Duplicates).
			Int("conflicts", len(rec.Conflicts)).
			Int("current_pick", s.CurrentPick).
			Str("status", string(s.Status)).
			Msg("session synced")
	}
	return OutcomeSynced, nil
}

func (e *Engine) save(ctx context.Context, s *models.DraftSession) (Outcome, error) {
	if err := e.store.Save(ctx, s); err != nil {
		if errors.Is(err, session.ErrVersionConflict) {
			// another writer won; its state is picked up next cycle
			return OutcomeConflict, err
		}
		return OutcomeFailed, fmt.Errorf("failed to save session: %w", err)
	}
	return "", nil
}

func (e *Engine) emit(ctx context.Context, sessionID uuid.UUID, evs []events.Event) {
	for _, ev := range evs {
		if err := e.notifier.Emit(ctx, sessionID, ev); err != nil {
			log.Error().
				Err(err).
				Str("session_id", sessionID.String()).
				Str("event_type", string(ev.Type())).
				Msg("failed to emit session event")
		}
	}
}

func withoutOnClock(evs []events.Event) []events.Event {
	out := evs[:0]
	for _, ev := range evs {
		if ev.Type() != events.TypeUserOnClock {
			out = append(out, ev)
		}
	}
	return out
}

// consecutiveFetchFailures counts fetch errors logged since the last good sync.
func consecutiveFetchFailures(s *models.DraftSession) int {
	n := 0
	for i := len(s.SyncErrors) - 1; i >= 0; i-- {
		e := s.SyncErrors[i]
		if e.Kind != models.SyncErrorTransient && e.Kind != models.SyncErrorFeed {
			break
		}
		if s.LastSyncAt != nil && !e.OccurredAt.After(*s.LastSyncAt) {
			break
		}
		n++
	}
	return n
}
