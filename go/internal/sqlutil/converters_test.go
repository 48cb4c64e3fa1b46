package sqlutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNullRawMessageEmptyIsNull(t *testing.T) {
	for _, v := range []any{nil, []string{}, map[string]int{}, (*time.Time)(nil)} {
		m, err := ToNullRawMessage(v)
		require.NoError(t, err)
		assert.False(t, m.Valid, "%T", v)
	}
}

func TestNullRawMessageRoundTrip(t *testing.T) {
	notes := []string{"pick 3 conflict"}
	m, err := ToNullRawMessage(notes)
	require.NoError(t, err)
	require.True(t, m.Valid)
	assert.JSONEq(t, `["pick 3 conflict"]`, string(m.RawMessage))

	var got []string
	require.NoError(t, FromNullRawMessage(m, &got))
	assert.Equal(t, notes, got)
}

func TestFromNullRawMessageLeavesDestinationOnNull(t *testing.T) {
	got := []string{"keep"}
	m, err := ToNullRawMessage(nil)
	require.NoError(t, err)
	require.NoError(t, FromNullRawMessage(m, &got))
	assert.Equal(t, []string{"keep"}, got)
}

func TestSqlTimeConversions(t *testing.T) {
	assert.Nil(t, FromSqlTime(ToSqlTime(nil)))

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	got := FromSqlTime(ToSqlTime(&now))
	require.NotNil(t, got)
	assert.True(t, now.Equal(*got))
}
