package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/livedraft/go/internal/models"
)

func TestNewEnvelopeRejectsInvalidEvents(t *testing.T) {
	now := time.Date(2026, 8, 30, 19, 0, 0, 0, time.UTC)
	sessionID := uuid.New()

	tests := []struct {
		name string
		ev   Event
	}{
		{name: "nil", ev: nil},
		{name: "pick without player", ev: PickMade{PickNumber: 3}},
		{name: "pick number zero", ev: PickMade{PlayerID: "4046"}},
		{name: "status unchanged", ev: StatusChange{From: models.DraftStatusPaused, To: models.DraftStatusPaused}},
		{name: "sync error without kind", ev: SyncError{Message: "timeout"}},
		{name: "auth without message", ev: AuthRequired{}},
		{name: "on clock without round", ev: UserOnClock{PickNumber: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnvelope(sessionID, tt.ev, now)
			require.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestDecodeRestoresTypedEvent(t *testing.T) {
	now := time.Date(2026, 8, 30, 19, 0, 0, 0, time.UTC)
	sessionID := uuid.New()

	pick := PickMadeFromRecord(models.PickRecord{
		PickNumber: 4,
		Round:      1,
		PlayerID:   "4046",
		PlayerName: "Patrick Mahomes",
		Position:   models.PositionQB,
		TeamID:     "4",
		IsUserPick: true,
		PickedAt:   now,
	})

	env, err := NewEnvelope(sessionID, pick, now)
	require.NoError(t, err)
	assert.Equal(t, TypePickMade, env.Type)
	assert.Equal(t, sessionID, env.SessionID)

	decoded, err := Decode(env)
	require.NoError(t, err)

	got, ok := decoded.(PickMade)
	require.True(t, ok)
	assert.Equal(t, pick, got)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode(Envelope{Type: "draft_exploded", Payload: []byte(`{}`)})
	require.ErrorIs(t, err, ErrInvalidEvent)
}
