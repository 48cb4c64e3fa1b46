package leagues

import (
	"errors"

	"github.com/mcdev12/livedraft/go/internal/models"
)

var (
	ErrLeagueNotFound = errors.New("league not found")
	ErrValidation     = errors.New("validation failed")
)

// CreateLeagueRequest represents the data needed to register a league
type CreateLeagueRequest struct {
	Name             string                    `json:"name"`
	Platform         models.Platform           `json:"platform"`
	ExternalLeagueID string                    `json:"external_league_id"`
	Season           string                    `json:"season"`
	TeamCount        int                       `json:"team_count"`
	Roster           models.RosterRequirements `json:"roster"`
	Scoring          models.ScoringSystem      `json:"scoring"`
}
