package steamtrade

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/zergu1ar/steamtrade/internal/clock"
)

const (
	baseUrl          = "https://steamcommunity.com"
	apiUrl           = "https://api.steampowered.com"
	defaultUseragent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/51.0.2704.103 Safari/537.36"
	defaultTimeout   = 30 * time.Second

	LanguageEng = "english"
	LanguageRus = "russian"
)

// Client talks to the Steam community site and Web API on behalf of one
// account. It implements Transport and UserResolver for the State it owns.
type Client struct {
	http         *resty.Client
	session      *OAuth
	useragent    string
	credentials  *Credentials
	apiKey       string
	language     string
	communityURL string
	apiURL       string

	guard *Guard
	state *State
}

type Credentials struct {
	Username       string
	Password       string
	SharedSecret   string
	IdentitySecret string
}

type clientOptions struct {
	httpClient   *http.Client
	useragent    string
	language     string
	apiKey       string
	communityURL string
	apiURL       string
	log          *logrus.Entry
	clock        clock.Clock
	metrics      *Metrics
}

type Option func(*clientOptions)

func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = client }
}

func WithUserAgent(useragent string) Option {
	return func(o *clientOptions) { o.useragent = useragent }
}

func WithLanguage(language string) Option {
	return func(o *clientOptions) { o.language = language }
}

// WithAPIKey sets the Web API key instead of scraping it with GetWebAPIKey.
func WithAPIKey(key string) Option {
	return func(o *clientOptions) { o.apiKey = key }
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *clientOptions) { o.log = log }
}

func WithClock(clk clock.Clock) Option {
	return func(o *clientOptions) { o.clock = clk }
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *clientOptions) { o.metrics = metrics }
}

// WithCommunityURL overrides https://steamcommunity.com.
func WithCommunityURL(rawURL string) Option {
	return func(o *clientOptions) { o.communityURL = rawURL }
}

// WithAPIURL overrides https://api.steampowered.com.
func WithAPIURL(rawURL string) Option {
	return func(o *clientOptions) { o.apiURL = rawURL }
}

// NewClient validates credentials and secrets and builds an unauthenticated
// client. Call Login before any account action.
func NewClient(credentials *Credentials, opts ...Option) (*Client, error) {
	if err := validateCredentials(credentials); err != nil {
		return nil, err
	}

	options := clientOptions{
		useragent:    defaultUseragent,
		language:     LanguageEng,
		communityURL: baseUrl,
		apiURL:       apiUrl,
		clock:        clock.Real(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.log == nil {
		options.log = logrus.NewEntry(logrus.StandardLogger())
	}

	guard, err := NewGuard(credentials.SharedSecret, credentials.IdentitySecret, options.clock)
	if err != nil {
		return nil, err
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}

	c := &Client{
		http: resty.NewWithClient(httpClient).
			SetHeader("User-Agent", options.useragent),
		useragent:    options.useragent,
		credentials:  credentials,
		apiKey:       options.apiKey,
		language:     options.language,
		communityURL: options.communityURL,
		apiURL:       options.apiURL,
		guard:        guard,
	}

	c.state = &State{
		Transport:    c,
		Users:        c,
		Guard:        guard,
		Session:      NewSession(),
		Clock:        options.clock,
		Log:          options.log.WithField("account", credentials.Username),
		Metrics:      options.metrics,
		CommunityURL: options.communityURL,
	}
	c.state.Confirmations = NewMobileConfirmations(c.state)

	return c, nil
}

// State returns the shared state offers and confirmations of this client use.
func (c *Client) State() *State {
	return c.state
}

func (c *Client) Session() *Session {
	return c.state.Session
}

func (c *Client) Guard() *Guard {
	return c.guard
}

func (c *Client) Confirmations() ConfirmationManager {
	return c.state.Confirmations
}

func (c *Client) GetSteamId() SteamID {
	if c.session != nil {
		return c.session.SteamID
	}
	return SteamID(0)
}

// User returns the logged-in account as a User.
func (c *Client) User() (*User, error) {
	if c.session == nil {
		return nil, NotLoggedInError
	}
	return &User{ID64: c.session.SteamID, Name: c.credentials.Username, state: c.state}, nil
}

func (c *Client) sessionID() (string, error) {
	if c.session == nil || c.session.ID == "" {
		return "", NotLoggedInError
	}
	return c.session.ID, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// Get performs a GET request and returns the body of a 200 response.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	resp, err := c.request(ctx).
		SetQueryParamsFromValues(params).
		Get(rawURL)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("http error: %d", resp.StatusCode())
	}
	return nil
}
