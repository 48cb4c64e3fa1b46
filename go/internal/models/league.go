package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoringSystem is the league's points format.
type ScoringSystem string

const (
	ScoringStandard ScoringSystem = "STANDARD"
	ScoringHalfPPR  ScoringSystem = "HALF_PPR"
	ScoringPPR      ScoringSystem = "PPR"
)

// Platform identifies the upstream fantasy platform a league lives on.
type Platform string

const (
	PlatformSleeper Platform = "SLEEPER"
	PlatformManual  Platform = "MANUAL"
)

// League represents a fantasy league a draft session belongs to.
type League struct {
	ID               uuid.UUID          `json:"id"`
	Name             string             `json:"name"`
	Platform         Platform           `json:"platform"`
	ExternalLeagueID string             `json:"external_league_id"`
	Season           string             `json:"season"`
	TeamCount        int                `json:"team_count"`
	Roster           RosterRequirements `json:"roster"`
	Scoring          ScoringSystem      `json:"scoring"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
