package steamtrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zergu1ar/steamtrade/internal/clock"
)

const (
	sendConfirmAttempts = 5
	sendConfirmBackoff  = 2 * time.Second
)

// User is a Steam account the client can trade with.
type User struct {
	ID64       SteamID
	Name       string
	AvatarURL  string
	ProfileURL string

	state *State
}

func (u *User) AccountID() uint32 {
	return u.ID64.GetAccountID()
}

func (u *User) String() string {
	if u.Name == "" {
		return u.ID64.ToString()
	}
	return u.Name
}

func (u *User) bound() error {
	if u.state == nil {
		return fmt.Errorf("%w: user %s is not bound to a client", ClientError, u.ID64)
	}
	return nil
}

// Inventory fetches the user's inventory for game.
func (u *User) Inventory(ctx context.Context, game Game) (*Inventory, error) {
	if err := u.bound(); err != nil {
		return nil, err
	}

	data, err := u.state.Transport.FetchUserInventory(ctx, u.ID64, game.AppID, game.ContextID)
	if err != nil {
		return nil, err
	}

	inv := NewInventory(u.ID64, data)
	inv.state = u.state
	inv.requested = game
	return inv, nil
}

// SendTrade sends offer to the user and returns once Steam has settled it.
//
// The offer's id, partner and state are updated in place. When Steam asks
// for a mobile confirmation it is attempted up to five times with a growing
// pause; a missing or rejected confirmation ends the attempts early. The
// offer is then treated as active and watched in the session. Once it
// settles its fields hold the settled state and EventTradeSend is
// dispatched.
func (u *User) SendTrade(ctx context.Context, offer *TradeOffer) (err error) {
	if err := u.bound(); err != nil {
		return err
	}
	if offer.sent {
		return TradeAlreadySentError
	}
	if len(offer.ItemsToSend) == 0 && len(offer.ItemsToReceive) == 0 {
		return TradeEmptyError
	}

	s := u.state
	defer func() { s.Metrics.observeTrade("send", err) }()

	response, err := s.Transport.SendTradeOffer(ctx, u.ID64,
		assetsOf(offer.ItemsToSend), assetsOf(offer.ItemsToReceive), offer.Token, offer.Message)
	if err != nil {
		return err
	}

	offer.state = s
	offer.sent = true
	offer.ID = response.TradeOfferID
	offer.Partner = u
	offer.isOurOffer = true
	offer.stamp(s.clock().Now())

	offer.State = TradeStateActive
	if response.NeedsMobileConfirmation {
		offer.State = TradeStateConfirmationNeed
		offer.ConfirmationMethod = TradeConfirmationMobileApp
		if err := u.confirmSent(ctx, offer); err != nil {
			return err
		}
		offer.State = TradeStateActive
	}

	s.Session.Watch(offer)
	if err := s.Session.WaitForTrade(ctx, offer.ID); err != nil {
		return err
	}
	s.Session.Dispatch(EventTradeSend, offer)

	return nil
}

// confirmSent only returns context errors. Any other failure leaves the
// offer for the caller to confirm later.
func (u *User) confirmSent(ctx context.Context, offer *TradeOffer) error {
	log := u.state.log().WithField("trade_id", offer.ID)

	for attempt := 0; attempt < sendConfirmAttempts; attempt++ {
		err := offer.Confirm(ctx)
		switch {
		case err == nil:
			return nil
		case isContextError(err):
			return err
		case errors.Is(err, ConfirmationError):
			log.WithError(err).Warn("giving up on trade confirmation")
			return nil
		}

		log.WithError(err).WithField("attempt", attempt+1).Debug("trade confirmation failed")
		if attempt == sendConfirmAttempts-1 {
			break
		}
		if err := clock.Sleep(ctx, u.state.clock(), time.Duration(attempt)*sendConfirmBackoff); err != nil {
			return err
		}
	}

	return nil
}
