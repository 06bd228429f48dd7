package steamtrade

import (
	"strconv"
)

const (
	AppIDTF2   = 440
	AppIDCSGO  = 730
	AppIDDota2 = 570
	AppIDSteam = 753

	defaultContextID = 2
	steamContextID   = 6

	economyImageURL = "https://steamcommunity-a.akamaihd.net/economy/image/"
)

// Game identifies an app and the inventory context its items live in.
type Game struct {
	AppID     uint32
	ContextID uint64
	Title     string
}

var knownGames = map[uint32]Game{
	AppIDTF2:   {AppID: AppIDTF2, ContextID: defaultContextID, Title: "Team Fortress 2"},
	AppIDCSGO:  {AppID: AppIDCSGO, ContextID: defaultContextID, Title: "Counter-Strike"},
	AppIDDota2: {AppID: AppIDDota2, ContextID: defaultContextID, Title: "Dota 2"},
	AppIDSteam: {AppID: AppIDSteam, ContextID: steamContextID, Title: "Steam"},
}

// NewGame returns the game for appID. Unknown apps use context 2.
func NewGame(appID uint32) Game {
	if game, ok := knownGames[appID]; ok {
		return game
	}
	return Game{AppID: appID, ContextID: defaultContextID}
}

// EconItem is an asset as Steam serializes it in inventories and offers.
type EconItem struct {
	AssetID    uint64 `json:"assetid,string,omitempty"`
	InstanceID uint64 `json:"instanceid,string,omitempty"`
	ClassID    uint64 `json:"classid,string,omitempty"`
	AppID      uint32 `json:"appid"`
	ContextID  uint64 `json:"contextid,string"`
	Amount     uint32 `json:"amount,string"`
	Missing    bool   `json:"missing,omitempty"`
}

type EconDesc struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Color string `json:"color"`
}

type EconTag struct {
	InternalName          string `json:"internal_name"`
	Name                  string `json:"name"`
	Category              string `json:"category"`
	CategoryName          string `json:"category_name"`
	LocalizedTagName      string `json:"localized_tag_name"`
	LocalizedCategoryName string `json:"localized_category_name"`
	Color                 string `json:"color"`
}

type EconAction struct {
	Link string `json:"link"`
	Name string `json:"name"`
}

// EconItemDesc is the metadata Steam shares between every asset of one class
// and instance.
type EconItemDesc struct {
	AppID           uint32        `json:"appid"`
	ClassID         uint64        `json:"classid,string"`
	InstanceID      uint64        `json:"instanceid,string"`
	Tradable        int           `json:"tradable"`
	Marketable      int           `json:"marketable"`
	BackgroundColor string        `json:"background_color"`
	IconURL         string        `json:"icon_url"`
	IconLargeURL    string        `json:"icon_url_large"`
	Name            string        `json:"name"`
	NameColor       string        `json:"name_color"`
	Type            string        `json:"type"`
	MarketName      string        `json:"market_name"`
	MarketHashName  string        `json:"market_hash_name"`
	Commodity       int           `json:"commodity"`
	Actions         []*EconAction `json:"actions"`
	Tags            []*EconTag    `json:"tags"`
	Descriptions    []*EconDesc   `json:"descriptions"`
}

// Asset is the minimal tradable unit. Two assets are the same kind of item
// when their class and instance ids match, regardless of id or amount.
type Asset struct {
	AssetID    uint64
	AppID      uint32
	ContextID  uint64
	Amount     uint32
	InstanceID uint64
	ClassID    uint64
}

func assetFromEcon(item *EconItem) Asset {
	contextID := item.ContextID
	if contextID == 0 {
		contextID = NewGame(item.AppID).ContextID
	}
	return Asset{
		AssetID:    item.AssetID,
		AppID:      item.AppID,
		ContextID:  contextID,
		Amount:     item.Amount,
		InstanceID: item.InstanceID,
		ClassID:    item.ClassID,
	}
}

func (a Asset) Equal(other Asset) bool {
	return a.ClassID == other.ClassID && a.InstanceID == other.InstanceID
}

func (a Asset) Game() Game {
	game := NewGame(a.AppID)
	if a.ContextID != 0 {
		game.ContextID = a.ContextID
	}
	return game
}

// tradeAsset is the shape Steam expects inside json_tradeoffer.
type tradeAsset struct {
	AppID     string `json:"appid"`
	ContextID string `json:"contextid"`
	Amount    uint32 `json:"amount"`
	AssetID   string `json:"assetid"`
}

func (a Asset) toTradeAsset() tradeAsset {
	return tradeAsset{
		AppID:     strconv.FormatUint(uint64(a.AppID), 10),
		ContextID: strconv.FormatUint(a.Game().ContextID, 10),
		Amount:    a.Amount,
		AssetID:   strconv.FormatUint(a.AssetID, 10),
	}
}

// Item is an asset together with its description. Missing is set when no
// description could be resolved and only the asset fields are known.
type Item struct {
	Asset

	Name           string
	Colour         *uint32
	MarketName     string
	MarketHashName string
	Descriptions   []*EconDesc
	Type           string
	Tags           []*EconTag
	IconURL        string
	Tradable       bool
	Marketable     bool
	Missing        bool
}

func newItem(asset *EconItem, desc *EconItemDesc) *Item {
	item := &Item{Asset: assetFromEcon(asset)}
	if desc == nil {
		item.Missing = true
		return item
	}

	item.Name = desc.Name
	item.MarketName = desc.MarketName
	item.MarketHashName = desc.MarketHashName
	item.Descriptions = desc.Descriptions
	item.Type = desc.Type
	item.Tags = desc.Tags
	item.Tradable = desc.Tradable != 0
	item.Marketable = desc.Marketable != 0

	if desc.NameColor != "" {
		if colour, err := strconv.ParseUint(desc.NameColor, 16, 32); err == nil {
			c := uint32(colour)
			item.Colour = &c
		}
	}

	switch {
	case desc.IconLargeURL != "":
		item.IconURL = economyImageURL + desc.IconLargeURL
	case desc.IconURL != "":
		item.IconURL = economyImageURL + desc.IconURL
	}

	return item
}

func (i *Item) IsTradable() bool {
	return i.Tradable
}

func (i *Item) IsMarketable() bool {
	return i.Marketable
}

// IsAsset reports whether the item carries asset fields only.
func (i *Item) IsAsset() bool {
	return i.Missing
}

type descKey struct {
	instanceID uint64
	classID    uint64
}

// reconcileItems joins assets with their descriptions on (instance id,
// class id). The first description for a key wins; assets without one become
// missing items. Order follows assets.
func reconcileItems(assets []*EconItem, descriptions []*EconItemDesc) []*Item {
	index := make(map[descKey]*EconItemDesc, len(descriptions))
	for _, desc := range descriptions {
		if desc == nil {
			continue
		}
		key := descKey{instanceID: desc.InstanceID, classID: desc.ClassID}
		if _, ok := index[key]; !ok {
			index[key] = desc
		}
	}

	items := make([]*Item, 0, len(assets))
	for _, asset := range assets {
		if asset == nil {
			continue
		}
		items = append(items, newItem(asset, index[descKey{instanceID: asset.InstanceID, classID: asset.ClassID}]))
	}

	return items
}

func toTradeAssets(assets []Asset) []tradeAsset {
	out := make([]tradeAsset, 0, len(assets))
	for _, asset := range assets {
		out = append(out, asset.toTradeAsset())
	}
	return out
}

func assetsOf(items []*Item) []Asset {
	assets := make([]Asset, 0, len(items))
	for _, item := range items {
		assets = append(assets, item.Asset)
	}
	return assets
}
