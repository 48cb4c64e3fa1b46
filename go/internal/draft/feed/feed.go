// Package feed defines the contract for reading draft state from an upstream platform.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 30 * time.Second

// Result is one snapshot of upstream draft state.
type Result struct {
	DraftInProgress bool
	DraftCompleted  bool
	Picks           []models.PickRecord
	// CurrentPickTeam is the team the platform says is on the clock, empty when unknown.
	CurrentPickTeam string
}

// PickFeed reads the current picks for a league's draft.
type PickFeed interface {
	Fetch(ctx context.Context, leagueID, season string) (*Result, error)
}

type sessionTokenKey struct{}

// WithSessionToken attaches a session's upstream credential to ctx. Feeds use
// it in place of their process-wide token.
func WithSessionToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionTokenKey{}, token)
}

// SessionToken returns the credential set by WithSessionToken, if any.
func SessionToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenKey{}).(string)
	return token, ok && token != ""
}

// TransientFetchError is a timeout, network failure or upstream 5xx/429. Retry later.
type TransientFetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch error in %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient fetch error in %s: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// AuthError means upstream rejected or expired the session credentials.
type AuthError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream rejected credentials in %s (status %d): %v", e.Op, e.StatusCode, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsTransient reports whether err is, or wraps, a TransientFetchError.
func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}

// IsAuth reports whether err is, or wraps, an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

type timeoutFeed struct {
	next    PickFeed
	timeout time.Duration
}

// WithTimeout bounds every Fetch on next. An expired deadline becomes a TransientFetchError.
func WithTimeout(next PickFeed, timeout time.Duration) PickFeed {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutFeed{next: next, timeout: timeout}
}

func (f *timeoutFeed) Fetch(ctx context.Context, leagueID, season string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, err := f.next.Fetch(ctx, leagueID, season)
	if err != nil {
		if IsTransient(err) || IsAuth(err) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TransientFetchError{Op: "fetch", Err: fmt.Errorf("timed out after %s: %w", f.timeout, err)}
		}
		return nil, err
	}
	return res, nil
}
