package steamtrade

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TradeOfferState mirrors Steam's ETradeOfferState.
type TradeOfferState uint8

const (
	TradeStateNone TradeOfferState = iota
	TradeStateInvalid
	TradeStateActive
	TradeStateAccepted
	TradeStateCountered
	TradeStateExpired
	TradeStateCanceled
	TradeStateDeclined
	TradeStateInvalidItems
	TradeStateConfirmationNeed
	TradeStateCanceledBySecondFactor
	TradeStateInEscrow
)

var tradeStateNames = [...]string{
	TradeStateNone:                   "None",
	TradeStateInvalid:                "Invalid",
	TradeStateActive:                 "Active",
	TradeStateAccepted:               "Accepted",
	TradeStateCountered:              "Countered",
	TradeStateExpired:                "Expired",
	TradeStateCanceled:               "Canceled",
	TradeStateDeclined:               "Declined",
	TradeStateInvalidItems:           "InvalidItems",
	TradeStateConfirmationNeed:       "ConfirmationNeed",
	TradeStateCanceledBySecondFactor: "CanceledBySecondFactor",
	TradeStateInEscrow:               "InEscrow",
}

func (s TradeOfferState) String() string {
	if int(s) < len(tradeStateNames) {
		return tradeStateNames[s]
	}
	return fmt.Sprintf("TradeOfferState(%d)", uint8(s))
}

// pending reports whether an offer in this state can still be acted on.
func (s TradeOfferState) pending() bool {
	return s == TradeStateActive || s == TradeStateConfirmationNeed
}

type TradeConfirmationMethod uint8

const (
	TradeConfirmationNone TradeConfirmationMethod = iota
	TradeConfirmationEmail
	TradeConfirmationMobileApp
)

// offerLifetime is how long Steam keeps an unanswered offer.
const offerLifetime = 14 * 24 * time.Hour

// TradeOfferData is a trade offer as the Web API serializes it.
type TradeOfferData struct {
	ID                 uint64                  `json:"tradeofferid,string"`
	Partner            uint32                  `json:"accountid_other"`
	ReceiptID          uint64                  `json:"tradeid,string"`
	RecvItems          []*EconItem             `json:"items_to_receive"`
	SendItems          []*EconItem             `json:"items_to_give"`
	Message            string                  `json:"message"`
	State              *TradeOfferState        `json:"trade_offer_state"`
	ConfirmationMethod TradeConfirmationMethod `json:"confirmation_method"`
	Created            int64                   `json:"time_created"`
	Updated            int64                   `json:"time_updated"`
	Expires            int64                   `json:"expiration_time"`
	EscrowEndDate      int64                   `json:"escrow_end_date"`
	RealTime           bool                    `json:"from_real_time_trade"`
	IsOurOffer         bool                    `json:"is_our_offer"`
}

func (d *TradeOfferData) validate() error {
	switch {
	case d == nil:
		return fmt.Errorf("%w: trade offer is empty", InvalidPayloadError)
	case d.ID == 0:
		return fmt.Errorf("%w: trade offer has no id", InvalidPayloadError)
	case d.Partner == 0:
		return fmt.Errorf("%w: trade offer %d has no partner", InvalidPayloadError, d.ID)
	}
	return nil
}

// TradeOffer is a trade between the account and a partner.
//
// Offers built by NewTradeOffer are local until sent through User.SendTrade.
// Offers received from Steam are built by State.TradeOfferFromData, which
// resolves the partner before returning.
type TradeOffer struct {
	ID                 uint64
	State              TradeOfferState
	Partner            *User
	Message            string
	Token              string
	ItemsToSend        []*Item
	ItemsToReceive     []*Item
	ReceiptID          uint64
	ConfirmationMethod TradeConfirmationMethod
	Created            time.Time
	Updated            time.Time
	Expires            time.Time
	// Escrow is when held items are released, nil without escrow.
	Escrow *time.Time

	isOurOffer bool
	sent       bool
	state      *State
}

// NewTradeOffer builds a local offer to be sent with User.SendTrade. token is
// the partner's trade token and may be empty for friends.
func NewTradeOffer(itemsToSend, itemsToReceive []*Item, message, token string) *TradeOffer {
	return &TradeOffer{
		ItemsToSend:    itemsToSend,
		ItemsToReceive: itemsToReceive,
		Message:        message,
		Token:          token,
	}
}

// ItemsFromAssets wraps bare assets for use in an offer.
func ItemsFromAssets(assets ...Asset) []*Item {
	items := make([]*Item, 0, len(assets))
	for _, asset := range assets {
		items = append(items, &Item{Asset: asset, Missing: true})
	}
	return items
}

// TradeOfferFromData builds an offer received from Steam. descriptions may be
// nil; items without one are marked missing. The partner is resolved before
// the offer is returned.
func (s *State) TradeOfferFromData(ctx context.Context, data *TradeOfferData, descriptions []*EconItemDesc) (*TradeOffer, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	partner, err := s.fetchUser(ctx, SteamIDFromAccountID(data.Partner))
	if err != nil {
		return nil, fmt.Errorf("resolve partner of trade %d: %w", data.ID, err)
	}

	offer := &TradeOffer{state: s, sent: true, Partner: partner}
	offer.update(data, descriptions)
	return offer, nil
}

func (o *TradeOffer) update(data *TradeOfferData, descriptions []*EconItemDesc) {
	o.ID = data.ID
	o.Message = data.Message
	o.ReceiptID = data.ReceiptID
	o.ConfirmationMethod = data.ConfirmationMethod
	o.Created = time.Unix(data.Created, 0).UTC()
	o.Updated = time.Unix(data.Updated, 0).UTC()
	o.Expires = time.Unix(data.Expires, 0).UTC()
	o.isOurOffer = data.IsOurOffer

	o.Escrow = nil
	if data.EscrowEndDate != 0 {
		escrow := time.Unix(data.EscrowEndDate, 0).UTC()
		o.Escrow = &escrow
	}

	o.State = TradeStateActive
	if data.State != nil {
		o.State = *data.State
	}

	o.ItemsToSend = reconcileItems(data.SendItems, descriptions)
	o.ItemsToReceive = reconcileItems(data.RecvItems, descriptions)
}

// IsGift reports whether the account only receives items.
func (o *TradeOffer) IsGift() bool {
	return len(o.ItemsToReceive) > 0 && len(o.ItemsToSend) == 0
}

// IsOneSided reports whether exactly one side of the offer has items.
func (o *TradeOffer) IsOneSided() bool {
	return (len(o.ItemsToReceive) > 0) != (len(o.ItemsToSend) > 0)
}

// IsOurOffer reports whether the account created the offer.
func (o *TradeOffer) IsOurOffer() bool {
	return o.isOurOffer
}

func (o *TradeOffer) String() string {
	return fmt.Sprintf("trade offer %d (%s)", o.ID, o.State)
}

func (o *TradeOffer) observe(action string, err error) {
	if o.state == nil {
		return
	}
	o.state.Metrics.observeTrade(action, err)

	log := o.state.log().WithFields(logrus.Fields{
		"action":   action,
		"trade_id": o.ID,
		"state":    o.State.String(),
	})
	if err != nil {
		log.WithError(err).Debug("trade action failed")
		return
	}
	log.Debug("trade action done")
}

func (o *TradeOffer) checkBound() error {
	if o.state == nil || !o.sent {
		return TradeNotSentError
	}
	return nil
}

// Confirm confirms the offer's mobile confirmation. Gifts need none and
// return nil without a request.
func (o *TradeOffer) Confirm(ctx context.Context) (err error) {
	if o.IsGift() {
		return nil
	}
	if err := o.checkBound(); err != nil {
		return err
	}
	if !o.State.pending() {
		return TradeCannotBeConfirmedError
	}
	defer func() { o.observe("confirm", err) }()

	return o.confirmTrade(ctx, o.ID)
}

func (o *TradeOffer) confirmTrade(ctx context.Context, tradeID uint64) error {
	confirmation, err := o.state.Confirmations.GetConfirmation(ctx, tradeID)
	if err != nil {
		return err
	}
	if confirmation == nil {
		return NoMatchingConfirmationError
	}
	return confirmation.Confirm(ctx)
}

// Accept accepts a received offer and confirms it when Steam asks for a
// mobile confirmation and an identity secret is configured.
func (o *TradeOffer) Accept(ctx context.Context) (err error) {
	if err := o.checkBound(); err != nil {
		return err
	}
	switch {
	case o.State == TradeStateAccepted:
		return TradeAlreadyAcceptedError
	case o.State != TradeStateActive:
		return TradeNotActiveError
	case o.isOurOffer:
		return AcceptOwnOfferError
	}
	defer func() { o.observe("accept", err) }()

	response, err := o.state.Transport.AcceptUserTrade(ctx, o.Partner.ID64, o.ID)
	if err != nil {
		return err
	}

	if response.NeedsMobileConfirmation {
		if !o.state.Guard.HasIdentitySecret() {
			o.state.log().WithField("trade_id", o.ID).Info("accepted trade awaits mobile confirmation")
			return nil
		}
		if err := o.Confirm(ctx); err != nil {
			return err
		}
	}

	o.State = TradeStateAccepted
	return nil
}

// Decline declines a received offer.
func (o *TradeOffer) Decline(ctx context.Context) (err error) {
	if err := o.checkBound(); err != nil {
		return err
	}
	switch {
	case o.State == TradeStateDeclined:
		return TradeAlreadyDeclinedError
	case !o.State.pending():
		return TradeNotActiveError
	case o.isOurOffer:
		return DeclineOwnOfferError
	}
	defer func() { o.observe("decline", err) }()

	if _, err := o.state.Transport.DeclineUserTrade(ctx, o.ID); err != nil {
		return err
	}

	o.State = TradeStateDeclined
	return nil
}

// Cancel withdraws an offer the account made, or a gift.
func (o *TradeOffer) Cancel(ctx context.Context) (err error) {
	if err := o.checkBound(); err != nil {
		return err
	}
	switch {
	case o.State == TradeStateCanceled:
		return TradeAlreadyCanceledError
	case !o.State.pending():
		return TradeNotActiveError
	case !o.isOurOffer && !o.IsGift():
		return CancelForeignOfferError
	}
	defer func() { o.observe("cancel", err) }()

	if _, err := o.state.Transport.CancelUserTrade(ctx, o.ID); err != nil {
		return err
	}

	o.State = TradeStateCanceled
	return nil
}

// Counter replaces a received offer with a new one holding the given items.
// The returned offer is the counter offer Steam created; its confirmation is
// handled here when Steam asks for one.
func (o *TradeOffer) Counter(ctx context.Context, itemsToSend, itemsToReceive []*Item, token, message string) (counter *TradeOffer, err error) {
	if err := o.checkBound(); err != nil {
		return nil, err
	}
	if o.isOurOffer {
		return nil, CounterOwnOfferError
	}
	defer func() { o.observe("counter", err) }()

	response, err := o.state.Transport.SendCounterTradeOffer(ctx, o.ID, o.Partner.ID64,
		assetsOf(itemsToSend), assetsOf(itemsToReceive), token, message)
	if err != nil {
		return nil, err
	}

	o.State = TradeStateCountered
	counter = &TradeOffer{
		ID:             response.TradeOfferID,
		State:          TradeStateActive,
		Partner:        o.Partner,
		Message:        message,
		Token:          token,
		ItemsToSend:    itemsToSend,
		ItemsToReceive: itemsToReceive,
		isOurOffer:     true,
		sent:           true,
		state:          o.state,
	}
	counter.stamp(o.state.clock().Now())

	if response.NeedsMobileConfirmation {
		counter.State = TradeStateConfirmationNeed
		if err := o.confirmTrade(ctx, response.TradeOfferID); err != nil {
			return counter, err
		}
		counter.State = TradeStateActive
	}

	return counter, nil
}

func (o *TradeOffer) stamp(now time.Time) {
	now = now.UTC().Truncate(time.Second)
	o.Created = now
	o.Updated = now
	o.Expires = now.Add(offerLifetime)
}
