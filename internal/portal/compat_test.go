package portal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestExtractRefreshedTokens(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		access  string
		refresh string
	}{
		{"accessToken", `{"accessToken":"a"}`, "a", ""},
		{"access_token", `{"access_token":"a","refresh_token":"r"}`, "a", "r"},
		{"token", `{"token":"a"}`, "a", ""},
		{"data.accessToken", `{"data":{"accessToken":"a","refreshToken":"r"}}`, "a", "r"},
		{"data.access_token", `{"data":{"access_token":"a"}}`, "a", ""},
		{"data.token", `{"data":{"token":"a"}}`, "a", ""},
		{"tokens.access", `{"tokens":{"access":"a","refresh":"r"}}`, "a", "r"},
		{"data.tokens.access", `{"data":{"tokens":{"access":"a"}}}`, "a", ""},
		{"top level wins over nested", `{"accessToken":"top","data":{"accessToken":"nested"}}`, "top", ""},
		{"blank values are skipped", `{"accessToken":"  ","token":"a"}`, "a", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tokens, ok := ExtractRefreshedTokens(decode(t, tc.payload))
			require.True(t, ok)
			assert.Equal(t, tc.access, tokens.Access)
			assert.Equal(t, tc.refresh, tokens.Refresh)
		})
	}

	t.Run("no token", func(t *testing.T) {
		_, ok := ExtractRefreshedTokens(decode(t, `{"data":{"user":{}}}`))
		assert.False(t, ok)
		_, ok = ExtractRefreshedTokens("not an object")
		assert.False(t, ok)
		_, ok = ExtractRefreshedTokens(nil)
		assert.False(t, ok)
	})
}

func TestNormalizeOverview(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		tryOutID int64
		player   string
		academy  string
	}{
		{"flat", `{"tryOutId":7,"playerId":"p1","academyId":"a1"}`, 7, "p1", "a1"},
		{"data envelope", `{"data":{"tryoutId":"9","player":{"id":42},"academy":{"id":"a2"}}}`, 9, "42", "a2"},
		{"snake case", `{"try_out_id":"11","player_id":"p3","academy_id":"a3"}`, 11, "p3", "a3"},
		{"nested try-out", `{"tryOut":{"id":13},"profile":{"playerId":"p4"},"customerId":"a4"}`, 13, "p4", "a4"},
		{"invalid try-out skipped", `{"tryOutId":0,"player":{"tryOutId":"15"}}`, 15, "", ""},
		{"missing everything", `{"name":"x"}`, 0, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := decode(t, tc.payload)
			overview := NormalizeOverview(raw)
			assert.Equal(t, tc.tryOutID, overview.TryOutID)
			assert.Equal(t, tc.player, overview.PlayerID)
			assert.Equal(t, tc.academy, overview.AcademyID)
			assert.Equal(t, raw, overview.Raw)
		})
	}
}
