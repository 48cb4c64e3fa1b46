// Package snake implements pick-order arithmetic for snake drafts, where odd
// rounds run in draft-slot order and even rounds run in reverse.
package snake

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned when team count or user position is out of range.
var ErrInvalidConfiguration = errors.New("invalid snake draft configuration")

// Clock bundles the draft shape needed to answer pick-order questions.
// TotalRounds of zero means the draft has no known end.
type Clock struct {
	TeamCount    int
	UserPosition int
	TotalRounds  int
}

// NewClock validates the configuration and returns a Clock.
func NewClock(teamCount, userPosition, totalRounds int) (Clock, error) {
	if err := validate(teamCount, userPosition); err != nil {
		return Clock{}, err
	}
	if totalRounds < 0 {
		return Clock{}, fmt.Errorf("%w: total rounds %d", ErrInvalidConfiguration, totalRounds)
	}
	return Clock{TeamCount: teamCount, UserPosition: userPosition, TotalRounds: totalRounds}, nil
}

// TotalPicks returns the number of picks in the draft, or 0 when unbounded.
func (c Clock) TotalPicks() int {
	return c.TotalRounds * c.TeamCount
}

// NextUserPick returns the overall number of the user's next pick at or after
// currentPick, or 0 when the draft has no such pick left.
func (c Clock) NextUserPick(currentRound, currentPick int) int {
	if currentPick < 1 {
		currentPick = 1
	}
	if currentRound < 1 {
		currentRound = roundForPick(currentPick, c.TeamCount)
	}
	if total := c.TotalPicks(); total > 0 && currentPick > total {
		return 0
	}

	pick := pickInRound(currentRound, c.TeamCount, c.UserPosition)
	if pick < currentPick {
		pick = pickInRound(currentRound+1, c.TeamCount, c.UserPosition)
	}
	if total := c.TotalPicks(); total > 0 && pick > total {
		return 0
	}
	return pick
}

// IsUserPick reports whether the given overall pick belongs to the user's slot.
func (c Clock) IsUserPick(pick int) bool {
	if pick < 1 {
		return false
	}
	if total := c.TotalPicks(); total > 0 && pick > total {
		return false
	}
	return slotForPick(pick, c.TeamCount) == c.UserPosition
}

// NextUserPick is the free-function form of Clock.NextUserPick.
func NextUserPick(currentRound, currentPick, teamCount, userPosition, totalRounds int) (int, error) {
	c, err := NewClock(teamCount, userPosition, totalRounds)
	if err != nil {
		return 0, err
	}
	return c.NextUserPick(currentRound, currentPick), nil
}

// PicksUntilTurn returns how many picks remain before nextPick comes up.
func PicksUntilTurn(nextPick, currentPick int) int {
	if nextPick <= currentPick {
		return 0
	}
	return nextPick - currentPick
}

// PickInRound returns the overall pick number held by draft slot position in round.
func PickInRound(round, teamCount, position int) (int, error) {
	if err := validate(teamCount, position); err != nil {
		return 0, err
	}
	if round < 1 {
		return 0, fmt.Errorf("%w: round %d", ErrInvalidConfiguration, round)
	}
	return pickInRound(round, teamCount, position), nil
}

// RoundForPick returns the 1-based round an overall pick falls in.
func RoundForPick(pick, teamCount int) (int, error) {
	if teamCount < 1 {
		return 0, fmt.Errorf("%w: team count %d", ErrInvalidConfiguration, teamCount)
	}
	if pick < 1 {
		return 0, fmt.Errorf("%w: pick %d", ErrInvalidConfiguration, pick)
	}
	return roundForPick(pick, teamCount), nil
}

// SlotForPick returns the draft slot (1-based) that owns an overall pick.
func SlotForPick(pick, teamCount int) (int, error) {
	if teamCount < 1 {
		return 0, fmt.Errorf("%w: team count %d", ErrInvalidConfiguration, teamCount)
	}
	if pick < 1 {
		return 0, fmt.Errorf("%w: pick %d", ErrInvalidConfiguration, pick)
	}
	return slotForPick(pick, teamCount), nil
}

func validate(teamCount, position int) error {
	if teamCount < 1 {
		return fmt.Errorf("%w: team count %d", ErrInvalidConfiguration, teamCount)
	}
	if position < 1 || position > teamCount {
		return fmt.Errorf("%w: user position %d outside 1..%d", ErrInvalidConfiguration, position, teamCount)
	}
	return nil
}

func pickInRound(round, teamCount, position int) int {
	base := (round - 1) * teamCount
	if round%2 == 1 {
		return base + position
	}
	return base + teamCount - position + 1
}

func roundForPick(pick, teamCount int) int {
	return (pick-1)/teamCount + 1
}

func slotForPick(pick, teamCount int) int {
	round := roundForPick(pick, teamCount)
	idx := (pick - 1) % teamCount
	if round%2 == 1 {
		return idx + 1
	}
	return teamCount - idx
}
