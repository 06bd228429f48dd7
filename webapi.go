package steamtrade

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
)

const (
	apiKeyPath          = "/dev/apikey"
	apiPlayerSummaries  = "/ISteamUser/GetPlayerSummaries/v2/"
	accessDeniedPattern = "<h2>Access Denied</h2>"
)

var (
	keyRegExp          = regexp.MustCompile("<p>Key: ([0-9A-F]+)</p>")
	accessDeniedRegExp = regexp.MustCompile(accessDeniedPattern)
)

// GetWebAPIKey scrapes the account's Web API key and keeps it for later Web
// API calls.
func (c *Client) GetWebAPIKey(ctx context.Context) (string, error) {
	body, err := c.Get(ctx, c.communityURL+apiKeyPath, nil)
	if err != nil {
		return "", err
	}

	return c.parseKey(body)
}

func (c *Client) parseKey(body []byte) (string, error) {
	if accessDeniedRegExp.Match(body) {
		return "", ApiAccessDeniedError
	}

	submatch := keyRegExp.FindSubmatch(body)
	if len(submatch) != 2 {
		return "", ApiKeyNotFoundError
	}

	c.apiKey = string(submatch[1])
	return c.apiKey, nil
}

type playerSummary struct {
	SteamID     SteamID `json:"steamid,string"`
	PersonaName string  `json:"personaname"`
	ProfileURL  string  `json:"profileurl"`
	AvatarFull  string  `json:"avatarfull"`
}

type playerSummariesResponse struct {
	Response struct {
		Players []playerSummary `json:"players"`
	} `json:"response"`
}

// FetchUser resolves a profile through the Web API. Without an API key only
// the id is known.
func (c *Client) FetchUser(ctx context.Context, sid SteamID) (*User, error) {
	if c.apiKey == "" {
		return &User{ID64: sid, state: c.state}, nil
	}

	body, err := c.Get(ctx, c.apiURL+apiPlayerSummaries, url.Values{
		"key":      {c.apiKey},
		"steamids": {strconv.FormatUint(uint64(sid), 10)},
	})
	if err != nil {
		return nil, err
	}

	var response playerSummariesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	user := &User{ID64: sid, state: c.state}
	for _, player := range response.Response.Players {
		if player.SteamID == sid {
			user.Name = player.PersonaName
			user.ProfileURL = player.ProfileURL
			user.AvatarURL = player.AvatarFull
			break
		}
	}

	return user, nil
}
