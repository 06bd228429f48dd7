package steamtrade

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	loginPath          = "/login/home/?goto=0"
	rsaPath            = "/login/getrsakey/"
	doLoginPath        = "/login/dologin/"
	queryTimePath      = "/ITwoFactorService/QueryTime/v1/"
	loginRequestedWith = "XMLHttpRequest"
)

type LoginResponse struct {
	Success      bool   `json:"success"`
	PublicKeyMod string `json:"publickey_mod"`
	PublicKeyExp string `json:"publickey_exp"`
	Timestamp    string `json:"timestamp"`
	TokenGID     string `json:"token_gid"`
}

type LoginSession struct {
	Success           bool   `json:"success"`
	LoginComplete     bool   `json:"login_complete"`
	RequiresTwoFactor bool   `json:"requires_twofactor"`
	Message           string `json:"message"`
	RedirectURI       string `json:"redirect_uri"`
	OAuth             OAuth  `json:"transfer_parameters"`
}

type OAuth struct {
	ID          string  `json:"-"`
	DeviceID    string  `json:"-"`
	SteamID     SteamID `json:"steamid,string"`
	Auth        string  `json:"auth"`
	TokenSecure string  `json:"token_secure"`
	WebCookie   string  `json:"webcookie"`
}

type queryTimeResponse struct {
	Response struct {
		ServerTime int64 `json:"server_time,string"`
	} `json:"response"`
}

// Login authenticates the account. With a shared secret the one-time code is
// generated from the guard, otherwise Steam must not ask for one.
func (c *Client) Login(ctx context.Context) error {
	if err := c.setupCookie(ctx); err != nil {
		return err
	}

	response, err := c.makeLoginRequest(ctx, c.credentials.Username)
	if err != nil {
		return err
	}

	var twoFactorCode string
	if c.guard.HasSharedSecret() {
		if twoFactorCode, err = c.guard.OneTimeCode(); err != nil {
			return err
		}
	}

	if err := c.proceedDirectLogin(ctx, response, c.credentials.Username, c.credentials.Password, twoFactorCode); err != nil {
		return err
	}

	c.state.log().WithFields(logrus.Fields{
		"steamid":  uint64(c.session.SteamID),
		"deviceid": c.session.DeviceID,
	}).Info("logged in")

	return nil
}

// SyncTime aligns the guard clock with Steam's server time.
func (c *Client) SyncTime(ctx context.Context) (time.Duration, error) {
	resp, err := c.request(ctx).
		SetFormData(map[string]string{"steamid": "0"}).
		Post(c.apiURL + queryTimePath)
	if err := checkResponse(resp, err); err != nil {
		return 0, err
	}

	var response queryTimeResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return 0, err
	}
	if response.Response.ServerTime == 0 {
		return 0, fmt.Errorf("%w: missing server_time", InvalidPayloadError)
	}

	offset := response.Response.ServerTime - c.state.clock().Now().Unix()
	c.guard.SetTimeOffset(offset)

	return time.Duration(offset) * time.Second, nil
}

func (c *Client) setupCookie(ctx context.Context) error {
	resp, err := c.request(ctx).Get(c.communityURL + loginPath)
	if err != nil {
		return err
	}

	steamUrl, err := url.Parse(c.communityURL)
	if err != nil {
		return err
	}

	_, offset := c.state.clock().Now().Zone()

	cookies := []*http.Cookie{
		{Name: "timezoneOffset", Value: fmt.Sprintf("%d,0", offset)},
	}

	for _, cookie := range resp.Cookies() {
		cookies = append(cookies, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	c.http.GetClient().Jar.SetCookies(steamUrl, cookies)

	return nil
}

func (c *Client) loginHeaders() map[string]string {
	return map[string]string{
		"X-Requested-With": loginRequestedWith,
		"Origin":           c.communityURL,
		"Referer":          c.communityURL + loginPath,
		"Accept":           "*/*",
	}
}

func (c *Client) donotcache() string {
	return strconv.FormatInt(c.state.clock().Now().Unix()*1000, 10)
}

func (c *Client) makeLoginRequest(ctx context.Context, accountName string) (*LoginResponse, error) {
	resp, err := c.request(ctx).
		SetHeaders(c.loginHeaders()).
		SetFormDataFromValues(url.Values{
			"username":   {accountName},
			"donotcache": {c.donotcache()},
		}).
		Post(c.communityURL + rsaPath)
	if err != nil {
		return nil, err
	}

	var response LoginResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, err
	}

	if !response.Success {
		return nil, InvalidCredentialsError
	}

	return &response, nil
}

func (c *Client) proceedDirectLogin(ctx context.Context, response *LoginResponse, accountName, password, twoFactorCode string) error {
	var n big.Int
	if _, ok := n.SetString(response.PublicKeyMod, 16); !ok {
		return fmt.Errorf("%w: bad rsa modulus", InvalidPayloadError)
	}

	exp, err := strconv.ParseInt(response.PublicKeyExp, 16, 32)
	if err != nil {
		return err
	}

	pub := rsa.PublicKey{N: &n, E: int(exp)}
	rsaOut, err := rsa.EncryptPKCS1v15(rand.Reader, &pub, []byte(password))
	if err != nil {
		return err
	}

	resp, err := c.request(ctx).
		SetHeaders(c.loginHeaders()).
		SetFormDataFromValues(url.Values{
			"captcha_text":      {""},
			"captchagid":        {"-1"},
			"emailauth":         {""},
			"emailsteamid":      {""},
			"username":          {accountName},
			"password":          {base64.StdEncoding.EncodeToString(rsaOut)},
			"remember_login":    {"true"},
			"rsatimestamp":      {response.Timestamp},
			"twofactorcode":     {twoFactorCode},
			"donotcache":        {c.donotcache()},
			"loginfriendlyname": {""},
		}).
		Post(c.communityURL + doLoginPath)
	if err != nil {
		return err
	}

	loginSession := &LoginSession{}
	if err := json.Unmarshal(resp.Body(), loginSession); err != nil {
		return err
	}

	if !loginSession.Success {
		if loginSession.RequiresTwoFactor {
			return RequireTwoFactorError
		}

		return fmt.Errorf("%w: %s", InvalidCredentialsError, loginSession.Message)
	}

	steamUrl, _ := url.Parse(c.communityURL)
	for _, cookie := range c.http.GetClient().Jar.Cookies(steamUrl) {
		if cookie.Name == "sessionid" {
			loginSession.OAuth.ID = cookie.Value
			break
		}
	}

	if loginSession.OAuth.ID == "" {
		return InvalidSessionError
	}

	c.guard.SetSteamID(loginSession.OAuth.SteamID)
	loginSession.OAuth.DeviceID = c.guard.DeviceID()
	c.session = &loginSession.OAuth

	return nil
}
