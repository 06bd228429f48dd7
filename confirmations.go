package steamtrade

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const confirmationListTag = "conf"

// MobileConfirmations lists pending confirmations from the mobile
// confirmation page. It implements ConfirmationManager.
type MobileConfirmations struct {
	state *State
}

func NewMobileConfirmations(state *State) *MobileConfirmations {
	return &MobileConfirmations{state: state}
}

// GetConfirmations returns every pending confirmation whose trade is not
// ignored by the session.
func (m *MobileConfirmations) GetConfirmations(ctx context.Context) ([]*Confirmation, error) {
	lookup := &Confirmation{state: m.state}
	params, err := lookup.params(confirmationListTag)
	if err != nil {
		return nil, err
	}

	body, err := m.state.Transport.Get(ctx, m.state.communityURL()+confirmationPath+"conf", params)
	if err != nil {
		return nil, err
	}

	confirmations, err := parseConfirmations(body)
	if err != nil {
		return nil, err
	}

	pending := confirmations[:0]
	for _, confirmation := range confirmations {
		if m.state.Session.IsConfirmationIgnored(confirmation.TradeID) {
			continue
		}
		confirmation.state = m.state
		pending = append(pending, confirmation)
	}

	return pending, nil
}

func (m *MobileConfirmations) GetConfirmation(ctx context.Context, tradeID uint64) (*Confirmation, error) {
	confirmations, err := m.GetConfirmations(ctx)
	if err != nil {
		return nil, err
	}

	for _, confirmation := range confirmations {
		if confirmation.TradeID == tradeID {
			return confirmation, nil
		}
	}

	return nil, nil
}

func parseConfirmations(body []byte) ([]*Confirmation, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	confirmations := make([]*Confirmation, 0)
	var parseErr error
	doc.Find(".mobileconf_list_entry").EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		confirmation := &Confirmation{
			DataKey: entry.AttrOr("data-key", ""),
		}

		id := entry.AttrOr("data-confid", "")
		if confirmation.DataConfID, parseErr = strconv.ParseUint(id, 10, 64); parseErr != nil {
			return false
		}

		confirmation.ID = strings.TrimPrefix(entry.AttrOr("id", ""), "conf")
		if confirmation.ID == "" {
			confirmation.ID = id
		}

		if creator, ok := entry.Attr("data-creator"); ok {
			confirmation.TradeID, _ = strconv.ParseUint(creator, 10, 64)
		}

		lines := entry.Find(".mobileconf_list_entry_description").Children()
		if lines.Length() == 0 {
			parseErr = ConfirmationsDescriptionNotFoundError
			return false
		}
		lines.Each(func(depth int, line *goquery.Selection) {
			text := strings.TrimSpace(line.Text())
			switch depth {
			case 0:
				confirmation.Title = text
			case 1:
				confirmation.Receiving = text
			case 2:
				confirmation.Since = text
			}
		})

		confirmations = append(confirmations, confirmation)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return confirmations, nil
}
