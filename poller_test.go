package steamtrade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOfferSource struct {
	mu       sync.Mutex
	offers   map[uint64]*TradeOfferData
	received []*TradeOfferData
	err      error
}

func (f *fakeOfferSource) set(id uint64, state TradeOfferState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offers == nil {
		f.offers = make(map[uint64]*TradeOfferData)
	}
	f.offers[id] = &TradeOfferData{ID: id, Partner: testPartnerAccount, State: stateOf(state), IsOurOffer: true}
}

func (f *fakeOfferSource) GetTradeOffer(_ context.Context, id uint64) (*TradeOfferData, []*EconItemDesc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	data, ok := f.offers[id]
	if !ok {
		return nil, nil, errors.New("not found")
	}
	return data, nil, nil
}

func (f *fakeOfferSource) GetTradeOffers(context.Context, uint32, time.Time) (*TradeOfferResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &TradeOfferResponse{ReceivedOffers: f.received}, nil
}

func TestPollerSettlesWatchedTrades(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeOfferSource{}
	source.set(1, TradeStateConfirmationNeed)
	source.set(2, TradeStateAccepted)
	source.set(3, TradeStateActive)
	source.set(4, TradeStateCanceledBySecondFactor)

	session := env.state.Session
	watched := map[uint64]*TradeOffer{}
	for _, id := range []uint64{1, 2, 3, 4} {
		watched[id] = &TradeOffer{ID: id, State: TradeStateActive, state: env.state}
		session.Watch(watched[id])
	}

	events := map[Event][]uint64{}
	for _, event := range []Event{EventTradeAccept, EventTradeCancel, EventTradeUpdate} {
		event := event
		session.On(event, func(o *TradeOffer) {
			assert.Same(t, watched[o.ID], o)
			events[event] = append(events[event], o.ID)
		})
	}

	poller := NewPoller(env.state, source, time.Minute)
	require.NoError(t, poller.Poll(context.Background()))

	assert.Equal(t, []uint64{1}, session.Watched())
	assert.Equal(t, map[Event][]uint64{
		EventTradeAccept: {2},
		EventTradeCancel: {4},
	}, events)

	assert.Equal(t, TradeStateActive, watched[1].State)
	assert.Equal(t, TradeStateAccepted, watched[2].State)
	assert.Equal(t, TradeStateCanceledBySecondFactor, watched[4].State)
	require.NotNil(t, watched[2].Partner)
	assert.Equal(t, SteamIDFromAccountID(testPartnerAccount), watched[2].Partner.ID64)
}

func TestPollerDispatchesReceivedOffersOnce(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeOfferSource{received: []*TradeOfferData{
		{ID: 10, Partner: testPartnerAccount, State: stateOf(TradeStateActive), RecvItems: []*EconItem{econItem(1, 10, 0)}},
		{ID: 11, Partner: testPartnerAccount, State: stateOf(TradeStateDeclined)},
		{ID: 12, Partner: testPartnerAccount, SendItems: []*EconItem{econItem(2, 11, 0)}},
	}}

	var received []uint64
	env.state.Session.On(EventTradeReceive, func(o *TradeOffer) {
		assert.Equal(t, o.ID == 10, o.IsGift())
		received = append(received, o.ID)
	})

	poller := NewPoller(env.state, source, 0)
	require.NoError(t, poller.Poll(context.Background()))
	require.NoError(t, poller.Poll(context.Background()))

	assert.Equal(t, []uint64{10, 12}, received)
}

func TestPollerCollectsErrors(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeOfferSource{err: errors.New("boom")}
	env.state.Session.Watch(&TradeOffer{ID: 1})

	err := NewPoller(env.state, source, time.Minute).Poll(context.Background())

	assert.ErrorContains(t, err, "trade 1: boom")
	assert.True(t, env.state.Session.IsWatching(1))
}

func TestPollerUnblocksSend(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeOfferSource{}
	source.set(900, TradeStateActive)
	env.transport.send = func(SteamID, []Asset, []Asset, string, string) (*TradeResponse, error) {
		return &TradeResponse{TradeOfferID: 900}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := NewPoller(env.state, source, 10*time.Millisecond)
	require.NoError(t, poller.Start(ctx))
	defer poller.Stop()

	done := sendAsync(ctx, partnerOf(env), outgoingOffer())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("send was not settled by the poller")
	}
}

func TestSettledEvent(t *testing.T) {
	_, ok := settledEvent(TradeStateActive)
	assert.False(t, ok)

	event, ok := settledEvent(TradeStateExpired)
	assert.True(t, ok)
	assert.Equal(t, EventTradeExpire, event)

	event, _ = settledEvent(TradeStateInEscrow)
	assert.Equal(t, EventTradeUpdate, event)
}

func TestPollerSettlesSentOfferInPlace(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeOfferSource{}
	source.set(900, TradeStateAccepted)
	env.transport.send = func(SteamID, []Asset, []Asset, string, string) (*TradeResponse, error) {
		return &TradeResponse{TradeOfferID: 900}, nil
	}

	var sentState, acceptState TradeOfferState
	var accepted *TradeOffer
	env.state.Session.On(EventTradeSend, func(o *TradeOffer) { sentState = o.State })
	env.state.Session.On(EventTradeAccept, func(o *TradeOffer) {
		accepted = o
		acceptState = o.State
	})

	offer := outgoingOffer()
	done := sendAsync(context.Background(), partnerOf(env), offer)
	require.Eventually(t, func() bool { return env.state.Session.IsWatching(900) }, time.Second, time.Millisecond)

	require.NoError(t, NewPoller(env.state, source, time.Minute).Poll(context.Background()))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send was not settled")
	}

	assert.Equal(t, TradeStateAccepted, offer.State)
	assert.Equal(t, TradeStateAccepted, sentState)
	assert.Same(t, offer, accepted)
	assert.Equal(t, TradeStateAccepted, acceptState)
}

func TestPollerForgetsInactiveReceivedOffers(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeOfferSource{received: []*TradeOfferData{
		{ID: 10, Partner: testPartnerAccount, State: stateOf(TradeStateActive)},
	}}
	poller := NewPoller(env.state, source, time.Minute)

	require.NoError(t, poller.Poll(context.Background()))
	assert.Len(t, poller.received, 1)

	source.mu.Lock()
	source.received = nil
	source.mu.Unlock()

	require.NoError(t, poller.Poll(context.Background()))
	assert.Empty(t, poller.received)
}

func TestPollerStartsOnce(t *testing.T) {
	env := newTestEnv(t)
	poller := NewPoller(env.state, &fakeOfferSource{}, time.Minute)

	require.NoError(t, poller.Start(context.Background()))
	assert.ErrorIs(t, poller.Start(context.Background()), PollerStartedError)

	stopped := make(chan struct{})
	go func() {
		poller.Stop()
		poller.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}

	select {
	case <-poller.stop:
	default:
		t.Fatal("stop channel left open")
	}
	assert.ErrorIs(t, poller.Start(context.Background()), PollerStartedError)
}
