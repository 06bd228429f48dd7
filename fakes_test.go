package steamtrade

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/zergu1ar/steamtrade/internal/clock"
)

const (
	testAccountSteamID = SteamID(76561198000000000)
	testPartnerAccount = uint32(12345)
)

var testEpoch = time.Unix(1600000000, 0).UTC()

type getRequest struct {
	URL    string
	Params url.Values
}

// fakeTransport records every call. Unset hooks succeed with an empty
// response.
type fakeTransport struct {
	mu    sync.Mutex
	calls map[string]int
	gets  []getRequest

	get       func(rawURL string, params url.Values) ([]byte, error)
	accept    func(partner SteamID, tradeID uint64) (*TradeResponse, error)
	decline   func(tradeID uint64) (*TradeResponse, error)
	cancel    func(tradeID uint64) (*TradeResponse, error)
	send      func(partner SteamID, send, receive []Asset, token, message string) (*TradeResponse, error)
	counter   func(tradeID uint64, partner SteamID, send, receive []Asset, token, message string) (*TradeResponse, error)
	inventory func(owner SteamID, appID uint32, contextID uint64) (*InventoryData, error)
	sell      func(asset Asset, priceCents int64) (*SellResponse, error)
}

func (f *fakeTransport) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeTransport) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeTransport) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeTransport) requests() []getRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]getRequest(nil), f.gets...)
}

func (f *fakeTransport) Get(_ context.Context, rawURL string, params url.Values) ([]byte, error) {
	f.record("get")
	f.mu.Lock()
	f.gets = append(f.gets, getRequest{URL: rawURL, Params: params})
	f.mu.Unlock()

	if f.get == nil {
		return []byte(`{"success":true}`), nil
	}
	return f.get(rawURL, params)
}

func (f *fakeTransport) AcceptUserTrade(_ context.Context, partner SteamID, tradeID uint64) (*TradeResponse, error) {
	f.record("accept")
	if f.accept == nil {
		return &TradeResponse{TradeOfferID: tradeID}, nil
	}
	return f.accept(partner, tradeID)
}

func (f *fakeTransport) DeclineUserTrade(_ context.Context, tradeID uint64) (*TradeResponse, error) {
	f.record("decline")
	if f.decline == nil {
		return &TradeResponse{TradeOfferID: tradeID}, nil
	}
	return f.decline(tradeID)
}

func (f *fakeTransport) CancelUserTrade(_ context.Context, tradeID uint64) (*TradeResponse, error) {
	f.record("cancel")
	if f.cancel == nil {
		return &TradeResponse{TradeOfferID: tradeID}, nil
	}
	return f.cancel(tradeID)
}

func (f *fakeTransport) SendTradeOffer(_ context.Context, partner SteamID, send, receive []Asset, token, message string) (*TradeResponse, error) {
	f.record("send")
	if f.send == nil {
		return &TradeResponse{TradeOfferID: 1}, nil
	}
	return f.send(partner, send, receive, token, message)
}

func (f *fakeTransport) SendCounterTradeOffer(_ context.Context, tradeID uint64, partner SteamID, send, receive []Asset, token, message string) (*TradeResponse, error) {
	f.record("counter")
	if f.counter == nil {
		return &TradeResponse{TradeOfferID: tradeID + 1}, nil
	}
	return f.counter(tradeID, partner, send, receive, token, message)
}

func (f *fakeTransport) FetchUserInventory(_ context.Context, owner SteamID, appID uint32, contextID uint64) (*InventoryData, error) {
	f.record("inventory")
	if f.inventory == nil {
		return &InventoryData{}, nil
	}
	return f.inventory(owner, appID, contextID)
}

func (f *fakeTransport) SellItem(_ context.Context, asset Asset, priceCents int64) (*SellResponse, error) {
	f.record("sell")
	if f.sell == nil {
		return &SellResponse{Success: true}, nil
	}
	return f.sell(asset, priceCents)
}

type fakeUsers struct{}

func (fakeUsers) FetchUser(_ context.Context, sid SteamID) (*User, error) {
	return &User{ID64: sid, Name: "partner"}, nil
}

// fakeConfirmations hands out confirmations bound to the test state, one per
// trade id registered with add.
type fakeConfirmations struct {
	mu      sync.Mutex
	state   *State
	pending map[uint64]*Confirmation
	lookups int
	err     func(tradeID uint64) error
}

func (f *fakeConfirmations) add(tradeID uint64) *Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		f.pending = make(map[uint64]*Confirmation)
	}
	c := &Confirmation{ID: "100", DataConfID: 100 + tradeID, DataKey: "key", TradeID: tradeID, state: f.state}
	f.pending[tradeID] = c
	return c
}

func (f *fakeConfirmations) GetConfirmation(_ context.Context, tradeID uint64) (*Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		if err := f.err(tradeID); err != nil {
			return nil, err
		}
	}
	return f.pending[tradeID], nil
}

type testEnv struct {
	state         *State
	transport     *fakeTransport
	confirmations *fakeConfirmations
	clock         *clock.FakeClock
	logs          *logtest.Hook
	metrics       *Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithSecrets(t, testSharedSecret, testIdentitySecret)
}

func newTestEnvWithSecrets(t *testing.T, shared, identity string) *testEnv {
	t.Helper()

	clk := clock.Fake(testEpoch)
	guard, err := NewGuard(shared, identity, clk)
	require.NoError(t, err)
	guard.SetSteamID(testAccountSteamID)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	env := &testEnv{
		transport: &fakeTransport{},
		clock:     clk,
		logs:      hook,
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}
	env.state = &State{
		Transport: env.transport,
		Users:     fakeUsers{},
		Guard:     guard,
		Session:   NewSession(),
		Clock:     clk,
		Log:       logrus.NewEntry(logger),
		Metrics:   env.metrics,
	}
	env.confirmations = &fakeConfirmations{state: env.state}
	env.state.Confirmations = env.confirmations

	return env
}

func stateOf(s TradeOfferState) *TradeOfferState {
	return &s
}

// receivedOffer builds an active offer from the partner through the
// two-phase constructor.
func (e *testEnv) receivedOffer(t *testing.T, id uint64, give, receive []*EconItem) *TradeOffer {
	t.Helper()

	offer, err := e.state.TradeOfferFromData(context.Background(), &TradeOfferData{
		ID:        id,
		Partner:   testPartnerAccount,
		SendItems: give,
		RecvItems: receive,
		State:     stateOf(TradeStateActive),
	}, nil)
	require.NoError(t, err)
	return offer
}

func econItem(assetID, classID, instanceID uint64) *EconItem {
	return &EconItem{
		AssetID:    assetID,
		ClassID:    classID,
		InstanceID: instanceID,
		AppID:      AppIDCSGO,
		ContextID:  2,
		Amount:     1,
	}
}
