package steamtrade

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const confirmationsPage = `<html><body>
<div id="mobileconf_list">
	<div class="mobileconf_list_entry" id="conf111" data-confid="111" data-key="k111" data-type="2" data-creator="5001">
		<div class="mobileconf_list_entry_content">
			<div class="mobileconf_list_entry_description">
				<div>Trade with partner</div>
				<div>You will receive AK-47 | Redline</div>
				<div>Just now</div>
			</div>
		</div>
	</div>
	<div class="mobileconf_list_entry" id="conf222" data-confid="222" data-key="k222" data-type="2" data-creator="5002">
		<div class="mobileconf_list_entry_content">
			<div class="mobileconf_list_entry_description">
				<div>Trade with other</div>
				<div>Nothing</div>
				<div>2 minutes ago</div>
			</div>
		</div>
	</div>
</div>
</body></html>`

func TestParseConfirmations(t *testing.T) {
	confirmations, err := parseConfirmations([]byte(confirmationsPage))
	require.NoError(t, err)
	require.Len(t, confirmations, 2)

	first := confirmations[0]
	assert.Equal(t, "111", first.ID)
	assert.Equal(t, uint64(111), first.DataConfID)
	assert.Equal(t, "k111", first.DataKey)
	assert.Equal(t, uint64(5001), first.TradeID)
	assert.Equal(t, "Trade with partner", first.Title)
	assert.Equal(t, "You will receive AK-47 | Redline", first.Receiving)
	assert.Equal(t, "Just now", first.Since)
}

func TestParseConfirmationsEmptyPage(t *testing.T) {
	confirmations, err := parseConfirmations([]byte(`<html><body><div id="mobileconf_empty">Nothing to confirm</div></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, confirmations)
}

func TestParseConfirmationsWithoutDescription(t *testing.T) {
	_, err := parseConfirmations([]byte(`<div class="mobileconf_list_entry" id="conf1" data-confid="1" data-key="k" data-creator="2"></div>`))
	assert.ErrorIs(t, err, ConfirmationsDescriptionNotFoundError)
}

func TestGetConfirmationsSkipsIgnoredTrades(t *testing.T) {
	env := newTestEnv(t)
	env.transport.get = func(string, url.Values) ([]byte, error) {
		return []byte(confirmationsPage), nil
	}
	env.state.Session.IgnoreConfirmation(5001)
	manager := NewMobileConfirmations(env.state)

	confirmations, err := manager.GetConfirmations(context.Background())
	require.NoError(t, err)
	require.Len(t, confirmations, 1)
	assert.Equal(t, uint64(5002), confirmations[0].TradeID)

	request := env.transport.requests()[0]
	assert.Equal(t, baseUrl+"/mobileconf/conf", request.URL)
	assert.Equal(t, "conf", request.Params.Get("tag"))

	found, err := manager.GetConfirmation(context.Background(), 5002)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "222", found.ID)

	missing, err := manager.GetConfirmation(context.Background(), 5001)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetConfirmationsBindsState(t *testing.T) {
	env := newTestEnv(t)
	page := true
	env.transport.get = func(string, url.Values) ([]byte, error) {
		if page {
			page = false
			return []byte(confirmationsPage), nil
		}
		return []byte(`{"success":true}`), nil
	}

	found, err := NewMobileConfirmations(env.state).GetConfirmation(context.Background(), 5001)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NoError(t, found.Cancel(context.Background()))
	assert.Equal(t, "k111", env.transport.requests()[1].Params.Get("ck"))
}
