package models

import "strings"

// Position is a fantasy roster position.
type Position string

const (
	PositionQB  Position = "QB"
	PositionRB  Position = "RB"
	PositionWR  Position = "WR"
	PositionTE  Position = "TE"
	PositionK   Position = "K"
	PositionDEF Position = "DEF"
)

// ParsePosition normalizes upstream spellings ("D/ST", "DST", "PK") to a Position.
func ParsePosition(s string) Position {
	switch p := strings.ToUpper(strings.TrimSpace(s)); p {
	case "D/ST", "DST", "D":
		return PositionDEF
	case "PK":
		return PositionK
	default:
		return Position(p)
	}
}

// IsFlexEligible reports whether the position can fill a FLEX slot.
func (p Position) IsFlexEligible() bool {
	return p == PositionRB || p == PositionWR || p == PositionTE
}

// RosterRequirements holds the starting lineup slot counts for a league.
type RosterRequirements struct {
	QB    int `json:"qb" yaml:"qb"`
	RB    int `json:"rb" yaml:"rb"`
	WR    int `json:"wr" yaml:"wr"`
	TE    int `json:"te" yaml:"te"`
	Flex  int `json:"flex" yaml:"flex"`
	K     int `json:"k" yaml:"k"`
	DEF   int `json:"def" yaml:"def"`
	Bench int `json:"bench" yaml:"bench"`
}

// DefaultRosterRequirements is a standard 1QB/2RB/2WR/1TE/1FLEX/K/DEF lineup.
func DefaultRosterRequirements() RosterRequirements {
	return RosterRequirements{QB: 1, RB: 2, WR: 2, TE: 1, Flex: 1, K: 1, DEF: 1, Bench: 6}
}

// Starters returns the number of dedicated starting slots for a position.
func (r RosterRequirements) Starters(p Position) int {
	switch p {
	case PositionQB:
		return r.QB
	case PositionRB:
		return r.RB
	case PositionWR:
		return r.WR
	case PositionTE:
		return r.TE
	case PositionK:
		return r.K
	case PositionDEF:
		return r.DEF
	default:
		return 0
	}
}

// TotalSlots is the number of roster spots, which is also the number of draft rounds.
func (r RosterRequirements) TotalSlots() int {
	return r.QB + r.RB + r.WR + r.TE + r.Flex + r.K + r.DEF + r.Bench
}
