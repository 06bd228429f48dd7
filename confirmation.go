package steamtrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	OpAllow  = "allow"
	OpCancel = "cancel"

	// AllowAttempts and AllowRetryDelay bound the retries of an allow
	// operation.
	AllowAttempts   = 4
	AllowRetryDelay = 4 * time.Second

	confirmationPath = "/mobileconf/"
	platformMarker   = "android"
)

// Confirmation is one pending mobile confirmation. It is used for a single
// allow, cancel or details call and then discarded.
type Confirmation struct {
	ID         string
	DataConfID uint64
	DataKey    string
	// TradeID is the id of the object being confirmed: a trade offer id, or
	// an asset id for market listings.
	TradeID uint64

	Title     string
	Receiving string
	Since     string

	state *State
}

// Equal compares confirmations by id and trade id.
func (c *Confirmation) Equal(other *Confirmation) bool {
	return other != nil && c.ID == other.ID && c.TradeID == other.TradeID
}

// Tag is the signing tag of the details request.
func (c *Confirmation) Tag() string {
	return "details" + strconv.FormatUint(c.DataConfID, 10)
}

func (c *Confirmation) String() string {
	return fmt.Sprintf("confirmation %s (trade %d)", c.ID, c.TradeID)
}

// flexBool decodes both JSON booleans and Steam's 0/1 integers.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("%w: cannot decode %s as a boolean", InvalidPayloadError, data)
	}
	return nil
}

type ConfirmationAnswerResponse struct {
	Success flexBool `json:"success"`
	Message string   `json:"message"`
	HTML    string   `json:"html"`

	// bare is set when the body is exactly {"success": false}.
	bare bool
}

func parseConfirmationResponse(body []byte) (*ConfirmationAnswerResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: confirmation response: %v", InvalidPayloadError, err)
	}

	var response ConfirmationAnswerResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: confirmation response: %v", InvalidPayloadError, err)
	}

	_, hasSuccess := fields["success"]
	response.bare = len(fields) == 1 && hasSuccess && !bool(response.Success)

	return &response, nil
}

// shouldRetryAllow treats transport failures and the bare failure shape as
// transient. Steam answers an allow with {"success": false} for a while
// before it converges.
func shouldRetryAllow(response *ConfirmationAnswerResponse, err error) bool {
	if err != nil {
		return isTransient(err)
	}
	return response.bare
}

func (c *Confirmation) params(tag string) (url.Values, error) {
	guard := c.state.Guard
	code, timestamp, err := guard.ConfirmationCode(tag)
	if err != nil {
		return nil, err
	}

	return url.Values{
		"p":   {guard.DeviceID()},
		"a":   {guard.SteamID().ToString()},
		"k":   {code},
		"t":   {strconv.FormatInt(timestamp, 10)},
		"m":   {platformMarker},
		"tag": {tag},
	}, nil
}

func (c *Confirmation) send(ctx context.Context, op string) (*ConfirmationAnswerResponse, error) {
	params, err := c.params(op)
	if err != nil {
		return nil, err
	}
	params.Set("op", op)
	params.Set("cid", strconv.FormatUint(c.DataConfID, 10))
	params.Set("ck", c.DataKey)

	body, err := c.state.Transport.Get(ctx, c.state.communityURL()+confirmationPath+"ajaxop", params)
	if err != nil {
		return nil, err
	}

	return parseConfirmationResponse(body)
}

// validate records the trade as ignored when Steam rejected the request, so a
// later refresh of the confirmation list does not offer it again.
func (c *Confirmation) validate(response *ConfirmationAnswerResponse) error {
	if response.Success {
		return nil
	}

	c.state.Session.IgnoreConfirmation(c.TradeID)
	c.state.log().WithField("trade_id", c.TradeID).Warn("confirmation rejected, ignoring trade")

	if response.Message != "" {
		return fmt.Errorf("%w: %s", ConfirmationRejectedError, response.Message)
	}
	return ConfirmationRejectedError
}

func (c *Confirmation) perform(ctx context.Context, op string) error {
	log := c.state.log().WithFields(logrus.Fields{
		"op":       op,
		"conf_id":  c.ID,
		"trade_id": c.TradeID,
	})
	log.Debug("performing confirmation op")

	policy := RetryPolicy[*ConfirmationAnswerResponse]{Attempts: 1}
	if op == OpAllow {
		policy = RetryPolicy[*ConfirmationAnswerResponse]{
			Attempts:    AllowAttempts,
			Delay:       AllowRetryDelay,
			ShouldRetry: shouldRetryAllow,
			OnRetry: func(next int, _ *ConfirmationAnswerResponse, err error) {
				log.WithField("attempt", next).WithError(err).Debug("retrying confirmation op")
				c.state.Metrics.observeConfirmationRetry(op)
			},
		}
	}

	response, err := policy.Do(ctx, c.state.clock(), func(ctx context.Context) (*ConfirmationAnswerResponse, error) {
		return c.send(ctx, op)
	})
	if err == nil {
		err = c.validate(response)
	}

	c.state.Metrics.observeConfirmation(op, err)
	return err
}

// Confirm allows the confirmation. Transient failures are retried up to
// AllowAttempts times, AllowRetryDelay apart.
func (c *Confirmation) Confirm(ctx context.Context) error {
	return c.perform(ctx, OpAllow)
}

// Cancel denies the confirmation. It is attempted once.
func (c *Confirmation) Cancel(ctx context.Context) error {
	return c.perform(ctx, OpCancel)
}

// Details returns the HTML Steam renders for the confirmation.
func (c *Confirmation) Details(ctx context.Context) (string, error) {
	params, err := c.params(c.Tag())
	if err != nil {
		return "", err
	}

	body, err := c.state.Transport.Get(ctx, c.state.communityURL()+confirmationPath+"details/"+c.ID, params)
	if err != nil {
		return "", err
	}

	response, err := parseConfirmationResponse(body)
	if err != nil {
		return "", err
	}
	if err := c.validate(response); err != nil {
		return "", err
	}

	return response.HTML, nil
}
