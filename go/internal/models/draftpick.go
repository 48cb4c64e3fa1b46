package models

import (
	"time"
)

// PickRecord is a single accepted pick. Once applied to a session it never changes.
type PickRecord struct {
	PickNumber int       `json:"pick_number"` // overall pick number, 1-based
	Round      int       `json:"round"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Position   Position  `json:"position"`
	NFLTeam    string    `json:"nfl_team"`
	TeamID     string    `json:"team_id"` // drafting team as the feed identifies it
	IsUserPick bool      `json:"is_user_pick"`
	PickedAt   time.Time `json:"picked_at"`
}
