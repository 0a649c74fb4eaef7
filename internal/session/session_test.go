package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultTranscript_ReturnsFreshCopy(t *testing.T) {
	a := DefaultTranscript()
	require.Len(t, a, 2)
	require.Equal(t, RoleSystem, a[0].Role)
	require.Equal(t, RoleAssistant, a[1].Role)
	require.Equal(t, Greeting, a[1].Content)

	a[1].Content = "mutated"
	require.Equal(t, Greeting, DefaultTranscript()[1].Content)
}

func TestVisible_DropsSystemMessages(t *testing.T) {
	msgs := append(DefaultTranscript(), Message{Role: RoleUser, Content: "Hello"})
	got := Visible(msgs)
	require.Equal(t, []Message{
		{Role: RoleAssistant, Content: Greeting},
		{Role: RoleUser, Content: "Hello"},
	}, got)
}

func TestRoleValid(t *testing.T) {
	require.True(t, RoleUser.Valid())
	require.True(t, RoleSystem.Valid())
	require.True(t, RoleAssistant.Valid())
	require.False(t, Role("tool").Valid())
	require.False(t, Role("").Valid())
}

func TestSummary_DecodesTimestampFormats(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2025-03-01T10:00:00Z"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"naive iso", `"2025-03-01T10:00:00.250000"`, time.Date(2025, 3, 1, 10, 0, 0, 250_000_000, time.UTC)},
		{"space separated", `"2025-03-01 10:00:00"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"unix seconds", `1740823200`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s Summary
			raw := `{"id":"abc","created_at":` + tc.raw + `,"last_active":null,"message_count":3}`
			require.NoError(t, json.Unmarshal([]byte(raw), &s))
			require.True(t, tc.want.Equal(s.CreatedAt.Time), "got %s", s.CreatedAt.Time)
			require.True(t, s.LastActive.IsZero())
			require.Equal(t, 3, s.MessageCount)
		})
	}
}

func TestSummary_RejectsGarbageTimestamp(t *testing.T) {
	var s Summary
	err := json.Unmarshal([]byte(`{"id":"abc","created_at":"yesterday"}`), &s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid timestamp")
}
