package steamtrade

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zergu1ar/steamtrade/internal/clock"
)

func testCredentials() *Credentials {
	return &Credentials{
		Username:       "alice",
		Password:       "hunter2",
		SharedSecret:   testSharedSecret,
		IdentitySecret: testIdentitySecret,
	}
}

// newTestClient points a client at handler for both the community site and
// the Web API.
func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithCommunityURL(srv.URL),
		WithAPIURL(srv.URL),
		WithAPIKey("KEY"),
		WithClock(clock.Fake(testEpoch)),
	}, opts...)

	c, err := NewClient(testCredentials(), opts...)
	require.NoError(t, err)
	return c
}

func loggedIn(c *Client) *Client {
	c.session = &OAuth{ID: "sess", SteamID: testAccountSteamID}
	c.guard.SetSteamID(testAccountSteamID)
	return c
}

func TestNewClientValidatesCredentials(t *testing.T) {
	_, err := NewClient(&Credentials{Password: "x"})
	assert.ErrorIs(t, err, UsernameEmptyError)

	_, err = NewClient(&Credentials{Username: "x"})
	assert.ErrorIs(t, err, PasswordEmptyError)

	_, err = NewClient(&Credentials{Username: "x", Password: "y", SharedSecret: "not base64!"})
	assert.ErrorIs(t, err, InvalidSecretError)

	_, err = NewClient(&Credentials{Username: "x", Password: "y", IdentitySecret: "%%%"})
	assert.ErrorIs(t, err, InvalidSecretError)
}

func TestNewClientWiresState(t *testing.T) {
	c, err := NewClient(testCredentials())
	require.NoError(t, err)

	state := c.State()
	assert.Same(t, c.Guard(), state.Guard)
	assert.Equal(t, baseUrl, state.communityURL())
	assert.IsType(t, &MobileConfirmations{}, c.Confirmations())
	assert.NotNil(t, c.Session())
	assert.Zero(t, c.GetSteamId())

	_, err = c.User()
	assert.ErrorIs(t, err, NotLoggedInError)
	_, err = c.sessionID()
	assert.ErrorIs(t, err, NotLoggedInError)
}

func TestClientGetSendsUserAgent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "steamtrade-test", r.UserAgent())
		assert.Equal(t, "1", r.URL.Query().Get("a"))
		_, _ = w.Write([]byte("body"))
	})
	mux.HandleFunc("/missing", http.NotFound)

	c := newTestClient(t, mux, WithUserAgent("steamtrade-test"))

	body, err := c.Get(context.Background(), c.communityURL+"/ok", map[string][]string{"a": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "body", string(body))

	_, err = c.Get(context.Background(), c.communityURL+"/missing", nil)
	assert.ErrorContains(t, err, "http error: 404")
}
