package steamtrade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteamIDParseDefaults(t *testing.T) {
	var sid SteamID
	sid.ParseDefaults(1)

	assert.Equal(t, SteamID(76561197960265729), sid)
	assert.Equal(t, uint32(1), sid.GetAccountID())
	assert.Equal(t, "76561197960265729", sid.ToString())
}

func TestParseSteamID(t *testing.T) {
	sid, err := ParseSteamID("76561198000000000")
	require.NoError(t, err)
	assert.Equal(t, SteamIDFromAccountID(39734272), sid)

	_, err = ParseSteamID("not-an-id")
	assert.Error(t, err)
}
