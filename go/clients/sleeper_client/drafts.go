package sleeper_client

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexID accepts ids Sleeper sends as either JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// SLDraftSettings is the subset of draft settings the feed needs.
type SLDraftSettings struct {
	Teams  int `json:"teams"`
	Rounds int `json:"rounds"`
}

// SLDraft is a draft as returned by the league drafts and draft endpoints.
type SLDraft struct {
	DraftID        string            `json:"draft_id"`
	LeagueID       string            `json:"league_id"`
	Season         string            `json:"season"`
	Status         string            `json:"status"`
	Type           string            `json:"type"`
	StartTime      int64             `json:"start_time"`
	Settings       SLDraftSettings   `json:"settings"`
	SlotToRosterID map[string]flexID `json:"slot_to_roster_id"`
}

// SLPickMetadata carries player details attached to a pick.
type SLPickMetadata struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
	Team      string `json:"team"`
}

// SLPick is one entry from the draft picks endpoint.
type SLPick struct {
	PlayerID  flexID         `json:"player_id"`
	PickedBy  string         `json:"picked_by"`
	RosterID  flexID         `json:"roster_id"`
	Round     int            `json:"round"`
	DraftSlot int            `json:"draft_slot"`
	PickNo    int            `json:"pick_no"`
	Metadata  SLPickMetadata `json:"metadata"`
}

func (p SLPick) playerName() string {
	return strings.TrimSpace(p.Metadata.FirstName + " " + p.Metadata.LastName)
}

func (d SLDraft) rosterForSlot(slot int) string {
	return string(d.SlotToRosterID[strconv.Itoa(slot)])
}
