package steamtrade

import (
	"context"
	"net/url"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zergu1ar/steamtrade/internal/clock"
)

// Transport performs the community requests the trade core depends on. Every
// trade response may ask for a mobile confirmation.
type Transport interface {
	// Get performs a GET against rawURL with params and returns the body.
	Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
	AcceptUserTrade(ctx context.Context, partner SteamID, tradeID uint64) (*TradeResponse, error)
	DeclineUserTrade(ctx context.Context, tradeID uint64) (*TradeResponse, error)
	CancelUserTrade(ctx context.Context, tradeID uint64) (*TradeResponse, error)
	SendTradeOffer(ctx context.Context, partner SteamID, send, receive []Asset, token, message string) (*TradeResponse, error)
	SendCounterTradeOffer(ctx context.Context, tradeID uint64, partner SteamID, send, receive []Asset, token, message string) (*TradeResponse, error)
	FetchUserInventory(ctx context.Context, owner SteamID, appID uint32, contextID uint64) (*InventoryData, error)
	SellItem(ctx context.Context, asset Asset, priceCents int64) (*SellResponse, error)
}

// ConfirmationManager looks up pending mobile confirmations.
type ConfirmationManager interface {
	// GetConfirmation returns the confirmation for tradeID, or nil if there
	// is none.
	GetConfirmation(ctx context.Context, tradeID uint64) (*Confirmation, error)
}

// UserResolver resolves account ids to users.
type UserResolver interface {
	FetchUser(ctx context.Context, sid SteamID) (*User, error)
}

// TradeResponse is the reply to every trade mutation.
type TradeResponse struct {
	ErrorMessage            string `json:"strError"`
	TradeOfferID            uint64 `json:"tradeofferid,string"`
	TradeID                 uint64 `json:"tradeid,string"`
	NeedsMobileConfirmation bool   `json:"needs_mobile_confirmation"`
	NeedsEmailConfirmation  bool   `json:"needs_email_confirmation"`
	EmailDomain             string `json:"email_domain"`
}

// State is everything offers, inventories and confirmations of one account
// share. Fields are set once before use.
type State struct {
	Transport     Transport
	Confirmations ConfirmationManager
	Users         UserResolver
	Guard         *Guard
	Session       *Session
	Clock         clock.Clock
	Log           *logrus.Entry
	Metrics       *Metrics

	// CommunityURL is the base of the mobile confirmation endpoints.
	CommunityURL string
}

func (s *State) clock() clock.Clock {
	if s.Clock == nil {
		return clock.Real()
	}
	return s.Clock
}

func (s *State) log() *logrus.Entry {
	if s.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log
}

func (s *State) communityURL() string {
	if s.CommunityURL == "" {
		return baseUrl
	}
	return s.CommunityURL
}

func (s *State) fetchUser(ctx context.Context, sid SteamID) (*User, error) {
	user, err := s.Users.FetchUser(ctx, sid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &User{ID64: sid}
	}
	user.state = s
	return user, nil
}

// Event names a trade lifecycle notification.
type Event string

const (
	EventTradeSend    Event = "trade_send"
	EventTradeReceive Event = "trade_receive"
	EventTradeAccept  Event = "trade_accept"
	EventTradeDecline Event = "trade_decline"
	EventTradeCancel  Event = "trade_cancel"
	EventTradeCounter Event = "trade_counter"
	EventTradeExpire  Event = "trade_expire"
	EventTradeUpdate  Event = "trade_update"
)

type Handler func(offer *TradeOffer)

// Session is the mutable state shared by every trade of one connection: the
// trade ids whose confirmations must not resurface, the trades being watched
// until they settle, and the event handlers.
//
// The trade core only adds to and reads the sets. Clearing them is up to the
// owner of the session. A Session is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	ignored  map[uint64]struct{}
	watched  map[uint64]*watchedTrade
	handlers map[Event][]Handler
}

// watchedTrade is an offer waiting for settlement and the channel closed
// once it settles.
type watchedTrade struct {
	offer *TradeOffer
	done  chan struct{}
}

func NewSession() *Session {
	return &Session{
		ignored:  make(map[uint64]struct{}),
		watched:  make(map[uint64]*watchedTrade),
		handlers: make(map[Event][]Handler),
	}
}

func (s *Session) IgnoreConfirmation(tradeID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignored[tradeID] = struct{}{}
}

func (s *Session) IsConfirmationIgnored(tradeID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ignored[tradeID]
	return ok
}

// IgnoredConfirmations returns the ignored trade ids in ascending order.
func (s *Session) IgnoredConfirmations() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.ignored))
	for id := range s.ignored {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Watch registers offer as waiting for settlement. Whoever settles it updates
// this instance, so callers of WaitForTrade observe the settled state.
// Watching an id twice is a no-op.
func (s *Session) Watch(offer *TradeOffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[offer.ID]; !ok {
		s.watched[offer.ID] = &watchedTrade{offer: offer, done: make(chan struct{})}
	}
}

// WatchedOffer returns the offer watched under tradeID, or nil.
func (s *Session) WatchedOffer(tradeID uint64) *TradeOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trade, ok := s.watched[tradeID]; ok {
		return trade.offer
	}
	return nil
}

func (s *Session) IsWatching(tradeID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watched[tradeID]
	return ok
}

// Watched returns the watched trade ids in ascending order.
func (s *Session) Watched() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.watched))
	for id := range s.watched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SettleTrade releases every waiter of tradeID and stops watching it. It
// reports whether the id was watched.
func (s *Session) SettleTrade(tradeID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok := s.watched[tradeID]
	if !ok {
		return false
	}
	close(trade.done)
	delete(s.watched, tradeID)
	return true
}

// WaitForTrade blocks until tradeID is settled or ctx is done. It returns
// immediately for ids that are not watched.
func (s *Session) WaitForTrade(ctx context.Context, tradeID uint64) error {
	s.mu.Lock()
	trade, ok := s.watched[tradeID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-trade.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) On(event Event, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], handler)
}

// Dispatch calls the handlers registered for event synchronously, in
// registration order.
func (s *Session) Dispatch(event Event, offer *TradeOffer) {
	s.mu.Lock()
	handlers := append([]Handler(nil), s.handlers[event]...)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(offer)
	}
}

// Reset forgets ignored confirmations and releases every watched trade.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, trade := range s.watched {
		close(trade.done)
		delete(s.watched, id)
	}
	s.ignored = make(map[uint64]struct{})
}
