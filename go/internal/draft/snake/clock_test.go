package snake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextUserPick(t *testing.T) {
	tests := []struct {
		name         string
		round        int
		currentPick  int
		teamCount    int
		userPosition int
		totalRounds  int
		want         int
	}{
		{name: "first round ascending", round: 1, currentPick: 1, teamCount: 10, userPosition: 4, totalRounds: 16, want: 4},
		{name: "second round descending", round: 2, currentPick: 11, teamCount: 10, userPosition: 4, totalRounds: 16, want: 17},
		{name: "pick already passed rolls to next round", round: 1, currentPick: 5, teamCount: 10, userPosition: 4, totalRounds: 16, want: 17},
		{name: "on the clock now", round: 2, currentPick: 17, teamCount: 10, userPosition: 4, totalRounds: 16, want: 17},
		{name: "turn pick at end of round", round: 1, currentPick: 10, teamCount: 10, userPosition: 10, totalRounds: 16, want: 10},
		{name: "turn pick back to back", round: 2, currentPick: 11, teamCount: 10, userPosition: 10, totalRounds: 16, want: 11},
		{name: "round derived from pick", round: 0, currentPick: 23, teamCount: 10, userPosition: 4, totalRounds: 16, want: 24},
		{name: "single team drafts every pick", round: 3, currentPick: 3, teamCount: 1, userPosition: 1, totalRounds: 5, want: 3},
		{name: "last user pick already made", round: 16, currentPick: 158, teamCount: 10, userPosition: 4, totalRounds: 16, want: 0},
		{name: "draft complete", round: 17, currentPick: 161, teamCount: 10, userPosition: 4, totalRounds: 16, want: 0},
		{name: "unbounded draft keeps going", round: 17, currentPick: 161, teamCount: 10, userPosition: 4, totalRounds: 0, want: 164},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextUserPick(tt.round, tt.currentPick, tt.teamCount, tt.userPosition, tt.totalRounds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextUserPickInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name         string
		teamCount    int
		userPosition int
	}{
		{name: "zero teams", teamCount: 0, userPosition: 1},
		{name: "position zero", teamCount: 10, userPosition: 0},
		{name: "position past team count", teamCount: 10, userPosition: 11},
		{name: "negative position", teamCount: 12, userPosition: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NextUserPick(1, 1, tt.teamCount, tt.userPosition, 16)
			require.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestPicksUntilTurn(t *testing.T) {
	assert.Equal(t, 6, PicksUntilTurn(17, 11))
	assert.Equal(t, 0, PicksUntilTurn(17, 17))
	assert.Equal(t, 0, PicksUntilTurn(0, 161))
}

func TestPickOwnershipRoundTrip(t *testing.T) {
	for teamCount := 1; teamCount <= 14; teamCount++ {
		for position := 1; position <= teamCount; position++ {
			for round := 1; round <= 20; round++ {
				pick, err := PickInRound(round, teamCount, position)
				require.NoError(t, err)

				slot, err := SlotForPick(pick, teamCount)
				require.NoError(t, err)
				require.Equal(t, position, slot, "teams=%d pos=%d round=%d", teamCount, position, round)

				gotRound, err := RoundForPick(pick, teamCount)
				require.NoError(t, err)
				require.Equal(t, round, gotRound)
			}
		}
	}
}

func TestClockIsUserPick(t *testing.T) {
	c, err := NewClock(12, 3, 15)
	require.NoError(t, err)

	assert.True(t, c.IsUserPick(3))
	assert.True(t, c.IsUserPick(22))
	assert.False(t, c.IsUserPick(4))
	assert.False(t, c.IsUserPick(0))
	assert.False(t, c.IsUserPick(181), "past the final pick")
}

func TestNextUserPickIsAlwaysAUserPick(t *testing.T) {
	c, err := NewClock(10, 7, 16)
	require.NoError(t, err)

	for current := 1; current <= c.TotalPicks(); current++ {
		round, err := RoundForPick(current, c.TeamCount)
		require.NoError(t, err)

		next := c.NextUserPick(round, current)
		if next == 0 {
			continue
		}
		assert.GreaterOrEqual(t, next, current)
		assert.True(t, c.IsUserPick(next), "pick %d", next)
	}
}
