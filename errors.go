package steamtrade

import (
	"errors"
	"fmt"
)

// Error classes. Every error below wraps exactly one of them, so callers can
// branch with errors.Is on the class instead of the individual error.
var (
	// ClientError marks a precondition violation raised before any request
	// is sent. It is a caller error and is never retried.
	ClientError = errors.New("client error")
	// ConfirmationError marks a missing or rejected mobile confirmation.
	ConfirmationError = errors.New("confirmation error")
	// InvalidSecretError marks a malformed shared or identity secret. It is a
	// configuration error and is fatal.
	InvalidSecretError = errors.New("invalid secret")
)

var (
	UsernameEmptyError                    = fmt.Errorf("%w: username is empty", ClientError)
	PasswordEmptyError                    = fmt.Errorf("%w: password is empty", ClientError)
	InvalidCredentialsError               = errors.New("invalid username or password")
	RequireTwoFactorError                 = errors.New("require two-factor auth")
	InvalidSessionError                   = errors.New("invalid session")
	ApiKeyNotFoundError                   = errors.New("api key not found")
	ApiAccessDeniedError                  = errors.New("access denied to steam web api")
	ConfirmationsDescriptionNotFoundError = errors.New("can't find confirmation description")
	CannotFindTradeOfferInfoError         = errors.New("can't find trade offer token")
	ReceiptMatchError                     = errors.New("can't find items in trade receipt")
	InvalidPayloadError                   = errors.New("invalid payload")

	IdentitySecretRequiredError = fmt.Errorf("%w: identity secret is not configured", ClientError)
	NotLoggedInError            = fmt.Errorf("%w: client is not logged in", ClientError)

	TradeNotActiveError         = fmt.Errorf("%w: this trade is not active", ClientError)
	TradeCannotBeConfirmedError = fmt.Errorf("%w: this trade cannot be confirmed", ClientError)
	TradeAlreadyAcceptedError   = fmt.Errorf("%w: this trade has already been accepted", ClientError)
	TradeAlreadyDeclinedError   = fmt.Errorf("%w: this trade has already been declined", ClientError)
	TradeAlreadyCanceledError   = fmt.Errorf("%w: this trade has already been canceled", ClientError)
	TradeAlreadySentError       = fmt.Errorf("%w: this trade has already been sent", ClientError)
	TradeNotSentError           = fmt.Errorf("%w: this trade has not been sent", ClientError)
	TradeEmptyError             = fmt.Errorf("%w: a trade needs at least one item", ClientError)
	AcceptOwnOfferError         = fmt.Errorf("%w: cannot accept an offer the account has made", ClientError)
	DeclineOwnOfferError        = fmt.Errorf("%w: cannot decline an offer the account has made", ClientError)
	CounterOwnOfferError        = fmt.Errorf("%w: cannot counter an offer the account has made", ClientError)
	CancelForeignOfferError     = fmt.Errorf("%w: offer was not created by the account and cannot be canceled", ClientError)
	InvalidPriceError           = fmt.Errorf("%w: price must be positive", ClientError)
	NoMatchingConfirmationError = fmt.Errorf("%w: no matching confirmation could be found for this trade", ConfirmationError)
	ConfirmationRejectedError   = fmt.Errorf("%w: confirmation was rejected", ConfirmationError)
	PollerStartedError          = fmt.Errorf("%w: poller was already started", ClientError)
)

// RemoteError is an application-level failure reported by Steam in an
// otherwise well-formed response.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}
