package steamtrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

const (
	TradeFilterNone             = 0
	TradeFilterSentOffers       = 1 << 0
	TradeFilterRecvOffers       = 1 << 1
	TradeFilterActiveOnly       = 1 << 3
	TradeFilterHistoricalOnly   = 1 << 4
	TradeFilterItemDescriptions = 1 << 5

	inventoryPageSize = 2000
)

var (
	//	oItem = {"id":"...",...}; (Javascript code)
	receiptExp    = regexp.MustCompile(`oItem = (.+?});`)
	myEscrowExp   = regexp.MustCompile(`var g_daysMyEscrow = (\d+);`)
	themEscrowExp = regexp.MustCompile(`var g_daysTheirEscrow = (\d+);`)
	errorMsgExp   = regexp.MustCompile(`<div id="error_msg">\s*([^<]+)\s*</div>`)
	offerInfoExp  = regexp.MustCompile(`token=([a-zA-Z0-9-_]+)`)
)

const (
	apiGetTradeOffer     = "/IEconService/GetTradeOffer/v1/"
	apiGetTradeOffers    = "/IEconService/GetTradeOffers/v1/"
	apiDeclineTradeOffer = "/IEconService/DeclineTradeOffer/v1/"
	apiCancelTradeOffer  = "/IEconService/CancelTradeOffer/v1/"
)

type TradeOfferResponse struct {
	Offer          *TradeOfferData   `json:"offer"`
	SentOffers     []*TradeOfferData `json:"trade_offers_sent"`
	ReceivedOffers []*TradeOfferData `json:"trade_offers_received"`
	Descriptions   []*EconItemDesc   `json:"descriptions"`
}

type APIResponse struct {
	Inner *TradeOfferResponse `json:"response"`
}

func (c *Client) getAPI(ctx context.Context, path string, params url.Values) (*TradeOfferResponse, error) {
	params.Set("key", c.apiKey)
	body, err := c.Get(ctx, c.apiURL+path, params)
	if err != nil {
		return nil, err
	}

	var response APIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if response.Inner == nil {
		return nil, fmt.Errorf("%w: empty web api response", InvalidPayloadError)
	}

	return response.Inner, nil
}

// GetTradeOffer fetches one offer with its item descriptions.
func (c *Client) GetTradeOffer(ctx context.Context, id uint64) (*TradeOfferData, []*EconItemDesc, error) {
	response, err := c.getAPI(ctx, apiGetTradeOffer, url.Values{
		"tradeofferid":     {strconv.FormatUint(id, 10)},
		"get_descriptions": {"1"},
		"language":         {c.language},
	})
	if err != nil {
		return nil, nil, err
	}
	if response.Offer == nil {
		return nil, nil, fmt.Errorf("%w: trade offer %d not found", InvalidPayloadError, id)
	}

	return response.Offer, response.Descriptions, nil
}

// FetchTradeOffer fetches one offer and resolves its partner.
func (c *Client) FetchTradeOffer(ctx context.Context, id uint64) (*TradeOffer, error) {
	data, descriptions, err := c.GetTradeOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.state.TradeOfferFromData(ctx, data, descriptions)
}

func testBit(bits uint32, bit uint32) bool {
	return (bits & bit) == bit
}

func (c *Client) GetTradeOffers(ctx context.Context, filter uint32, timeCutOff time.Time) (*TradeOfferResponse, error) {
	params := url.Values{
		"language": {c.language},
	}
	if testBit(filter, TradeFilterSentOffers) {
		params.Set("get_sent_offers", "1")
	}

	if testBit(filter, TradeFilterRecvOffers) {
		params.Set("get_received_offers", "1")
	}

	if testBit(filter, TradeFilterActiveOnly) {
		params.Set("active_only", "1")
	}

	if testBit(filter, TradeFilterItemDescriptions) {
		params.Set("get_descriptions", "1")
	}

	if testBit(filter, TradeFilterHistoricalOnly) {
		params.Set("historical_only", "1")
		params.Set("time_historical_cutoff", strconv.FormatInt(timeCutOff.Unix(), 10))
	}

	return c.getAPI(ctx, apiGetTradeOffers, params)
}

func (c *Client) GetMyTradeToken(ctx context.Context) (string, error) {
	body, err := c.Get(ctx, c.communityURL+"/my/tradeoffers/privacy", nil)
	if err != nil {
		return "", err
	}

	m := offerInfoExp.FindStringSubmatch(string(body))
	if len(m) != 2 {
		return "", CannotFindTradeOfferInfoError
	}

	return m[1], nil
}

type EscrowSteamGuardInfo struct {
	MyDays   int64
	ThemDays int64
	ErrorMsg string
}

func (c *Client) GetEscrowGuardInfo(ctx context.Context, sid SteamID, token string) (*EscrowSteamGuardInfo, error) {
	body, err := c.Get(ctx, c.communityURL+"/tradeoffer/new/", url.Values{
		"partner": {strconv.FormatUint(uint64(sid.GetAccountID()), 10)},
		"token":   {token},
	})
	if err != nil {
		return nil, err
	}

	var info EscrowSteamGuardInfo

	if m := myEscrowExp.FindSubmatch(body); len(m) == 2 {
		info.MyDays, _ = strconv.ParseInt(string(m[1]), 10, 32)
	}

	if m := themEscrowExp.FindSubmatch(body); len(m) == 2 {
		info.ThemDays, _ = strconv.ParseInt(string(m[1]), 10, 32)
	}

	if m := errorMsgExp.FindSubmatch(body); len(m) == 2 {
		info.ErrorMsg = string(m[1])
	}

	return &info, nil
}

func (c *Client) postTradeOffer(ctx context.Context, partner SteamID, send, receive []Asset, token, message string, countered uint64) (*TradeResponse, error) {
	sessionID, err := c.sessionID()
	if err != nil {
		return nil, err
	}

	content := map[string]interface{}{
		"newversion": true,
		"version":    len(send) + len(receive) + 1,
		"me": map[string]interface{}{
			"assets":   toTradeAssets(send),
			"currency": make([]struct{}, 0),
			"ready":    false,
		},
		"them": map[string]interface{}{
			"assets":   toTradeAssets(receive),
			"currency": make([]struct{}, 0),
			"ready":    false,
		},
	}

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}

	createParams, err := json.Marshal(map[string]string{"trade_offer_access_token": token})
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"sessionid":                 {sessionID},
		"serverid":                  {"1"},
		"partner":                   {partner.ToString()},
		"tradeoffermessage":         {message},
		"json_tradeoffer":           {string(contentJSON)},
		"captcha":                   {""},
		"trade_offer_create_params": {string(createParams)},
	}
	if countered != 0 {
		form.Set("tradeofferid_countered", strconv.FormatUint(countered, 10))
	}

	referer := c.communityURL + "/tradeoffer/new/?" + url.Values{
		"partner": {strconv.FormatUint(uint64(partner.GetAccountID()), 10)},
		"token":   {token},
	}.Encode()
	if countered != 0 {
		referer = c.communityURL + "/tradeoffer/" + strconv.FormatUint(countered, 10) + "/"
	}

	resp, err := c.request(ctx).
		SetHeader("Referer", referer).
		SetFormDataFromValues(form).
		Post(c.communityURL + "/tradeoffer/new/send")
	if err != nil {
		return nil, err
	}

	var response TradeResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("http error: %d", resp.StatusCode())
		}
		return nil, err
	}

	if len(response.ErrorMessage) != 0 {
		return nil, &RemoteError{Op: "send trade offer", Message: response.ErrorMessage}
	}

	if response.TradeOfferID == 0 {
		return nil, errors.New("no OfferID included")
	}

	return &response, nil
}

func (c *Client) SendTradeOffer(ctx context.Context, partner SteamID, send, receive []Asset, token, message string) (*TradeResponse, error) {
	return c.postTradeOffer(ctx, partner, send, receive, token, message, 0)
}

func (c *Client) SendCounterTradeOffer(ctx context.Context, tradeID uint64, partner SteamID, send, receive []Asset, token, message string) (*TradeResponse, error) {
	return c.postTradeOffer(ctx, partner, send, receive, token, message, tradeID)
}

type receiptItem struct {
	ID         uint64      `json:"id,string"`
	AppID      uint32      `json:"appid"`
	ContextID  uint64      `json:"contextid,string"`
	ClassID    uint64      `json:"classid,string"`
	InstanceID uint64      `json:"instanceid,string"`
	Amount     json.Number `json:"amount"`
}

// GetTradeReceivedItems returns the items the account received in a
// completed trade.
func (c *Client) GetTradeReceivedItems(ctx context.Context, receiptID uint64) ([]*Item, error) {
	body, err := c.Get(ctx, fmt.Sprintf("%s/trade/%d/receipt", c.communityURL, receiptID), nil)
	if err != nil {
		return nil, err
	}

	m := receiptExp.FindAllSubmatch(body, -1)
	if m == nil {
		return nil, ReceiptMatchError
	}

	items := make([]*Item, len(m))
	for k := range m {
		var asset receiptItem
		if err := json.Unmarshal(m[k][1], &asset); err != nil {
			return nil, err
		}
		var desc EconItemDesc
		if err := json.Unmarshal(m[k][1], &desc); err != nil {
			return nil, err
		}

		amount, _ := strconv.ParseUint(asset.Amount.String(), 10, 32)
		items[k] = newItem(&EconItem{
			AssetID:    asset.ID,
			InstanceID: asset.InstanceID,
			ClassID:    asset.ClassID,
			AppID:      asset.AppID,
			ContextID:  asset.ContextID,
			Amount:     uint32(amount),
		}, &desc)
	}

	return items, nil
}

func (c *Client) postWebAPI(ctx context.Context, path string, id uint64, op string) (*TradeResponse, error) {
	resp, err := c.request(ctx).
		SetFormDataFromValues(url.Values{
			"key":          {c.apiKey},
			"tradeofferid": {strconv.FormatUint(id, 10)},
		}).
		Post(c.apiURL + path)
	if err != nil {
		return nil, err
	}

	result := resp.Header().Get("x-eresult")
	if result != "1" {
		return nil, &RemoteError{Op: op, Message: "eresult " + result}
	}

	return &TradeResponse{TradeOfferID: id}, nil
}

func (c *Client) DeclineUserTrade(ctx context.Context, tradeID uint64) (*TradeResponse, error) {
	return c.postWebAPI(ctx, apiDeclineTradeOffer, tradeID, "decline trade")
}

func (c *Client) CancelUserTrade(ctx context.Context, tradeID uint64) (*TradeResponse, error) {
	return c.postWebAPI(ctx, apiCancelTradeOffer, tradeID, "cancel trade")
}

func (c *Client) AcceptUserTrade(ctx context.Context, partner SteamID, tradeID uint64) (*TradeResponse, error) {
	sessionID, err := c.sessionID()
	if err != nil {
		return nil, err
	}

	tid := strconv.FormatUint(tradeID, 10)
	postURL := c.communityURL + "/tradeoffer/" + tid

	resp, err := c.request(ctx).
		SetHeader("Referer", postURL+"/").
		SetFormDataFromValues(url.Values{
			"sessionid":    {sessionID},
			"serverid":     {"1"},
			"tradeofferid": {tid},
			"partner":      {partner.ToString()},
			"captcha":      {""},
		}).
		Post(postURL + "/accept")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	var response TradeResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, err
	}

	if len(response.ErrorMessage) != 0 {
		return nil, &RemoteError{Op: "accept trade", Message: response.ErrorMessage}
	}

	return &response, nil
}

func (c *Client) FetchUserInventory(ctx context.Context, owner SteamID, appID uint32, contextID uint64) (*InventoryData, error) {
	body, err := c.Get(ctx, fmt.Sprintf("%s/inventory/%d/%d/%d", c.communityURL, uint64(owner), appID, contextID), url.Values{
		"l":     {c.language},
		"count": {strconv.Itoa(inventoryPageSize)},
	})
	if err != nil {
		return nil, err
	}

	var data InventoryData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	return &data, nil
}

func (c *Client) SellItem(ctx context.Context, asset Asset, priceCents int64) (*SellResponse, error) {
	sessionID, err := c.sessionID()
	if err != nil {
		return nil, err
	}

	amount := asset.Amount
	if amount == 0 {
		amount = 1
	}

	resp, err := c.request(ctx).
		SetHeader("Referer", fmt.Sprintf("%s/profiles/%d/inventory", c.communityURL, uint64(c.GetSteamId()))).
		SetFormDataFromValues(url.Values{
			"sessionid": {sessionID},
			"appid":     {strconv.FormatUint(uint64(asset.AppID), 10)},
			"contextid": {strconv.FormatUint(asset.Game().ContextID, 10)},
			"assetid":   {strconv.FormatUint(asset.AssetID, 10)},
			"amount":    {strconv.FormatUint(uint64(amount), 10)},
			"price":     {strconv.FormatInt(priceCents, 10)},
		}).
		Post(c.communityURL + "/market/sellitem/")
	if err != nil {
		return nil, err
	}

	var response SellResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("http error: %d", resp.StatusCode())
		}
		return nil, err
	}

	return &response, nil
}
