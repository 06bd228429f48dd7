package steamtrade

import (
	"context"

	"github.com/shopspring/decimal"
)

// SellResponse is the reply to a market listing request.
type SellResponse struct {
	Success                 flexBool `json:"success"`
	Message                 string   `json:"message"`
	RequiresConfirmation    flexBool `json:"requires_confirmation"`
	NeedsMobileConfirmation bool     `json:"needs_mobile_confirmation"`
	NeedsEmailConfirmation  bool     `json:"needs_email_confirmation"`
	EmailDomain             string   `json:"email_domain"`
}

// priceCents converts a price in currency units to the integer cents Steam
// expects, rounding half away from zero.
func priceCents(price decimal.Decimal) (int64, error) {
	cents := price.Shift(2).Round(0)
	if !cents.IsPositive() {
		return 0, InvalidPriceError
	}
	return cents.IntPart(), nil
}

// ListItem lists item on the community market. price is what the buyer
// pays, e.g. decimal.RequireFromString("2.50"). When Steam asks for a mobile
// confirmation and an identity secret is configured, the listing is
// confirmed too.
//
// Listing items from an unattended account can get it restricted.
func (s *State) ListItem(ctx context.Context, item *Item, price decimal.Decimal) (err error) {
	cents, err := priceCents(price)
	if err != nil {
		return err
	}
	defer func() { s.Metrics.observeTrade("list", err) }()

	response, err := s.Transport.SellItem(ctx, item.Asset, cents)
	if err != nil {
		return err
	}
	if !response.Success {
		return &RemoteError{Op: "sell item", Message: response.Message}
	}

	if !response.NeedsMobileConfirmation && !bool(response.RequiresConfirmation) {
		return nil
	}
	if !s.Guard.HasIdentitySecret() {
		s.log().WithField("asset_id", item.AssetID).Info("listing awaits mobile confirmation")
		return nil
	}

	confirmation, err := s.Confirmations.GetConfirmation(ctx, item.AssetID)
	if err != nil {
		return err
	}
	if confirmation == nil {
		s.log().WithField("asset_id", item.AssetID).Warn("no confirmation found for listing")
		return nil
	}

	return confirmation.Confirm(ctx)
}
