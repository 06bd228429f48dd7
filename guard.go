package steamtrade

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/zergu1ar/steamtrade/internal/clock"
)

const (
	codeAlphabet = "23456789BCDFGHJKMNPQRTVWXY"
	codeLength   = 5
	codePeriod   = 30

	devicePrefix = "android:"
)

func decodeSecret(secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", InvalidSecretError, err)
	}
	return key, nil
}

// GenerateOneTimeCode returns the Steam Guard sign-in code for the 30 second
// window containing timestamp.
func GenerateOneTimeCode(sharedSecret string, timestamp int64) (string, error) {
	key, err := decodeSecret(sharedSecret)
	if err != nil {
		return "", err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(timestamp/codePeriod))

	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	begin := sum[19] & 0x0f
	full := binary.BigEndian.Uint32(sum[begin:begin+4]) & 0x7fffffff

	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[full%uint32(len(codeAlphabet))]
		full /= uint32(len(codeAlphabet))
	}

	return string(code), nil
}

// GenerateConfirmationCode returns the base64 signature that authorizes the
// operation named by tag at timestamp.
func GenerateConfirmationCode(identitySecret, tag string, timestamp int64) (string, error) {
	key, err := decodeSecret(identitySecret)
	if err != nil {
		return "", err
	}

	buf := make([]byte, 8, 8+len(tag))
	binary.BigEndian.PutUint64(buf, uint64(timestamp))
	buf = append(buf, tag...)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// GenerateDeviceID derives the mobile device id for a 64-bit account id.
// The result has the form android:xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx.
func GenerateDeviceID(sid SteamID) string {
	sum := sha1.Sum([]byte(strconv.FormatUint(uint64(sid), 10)))

	var id uuid.UUID
	copy(id[:], sum[:16])

	return devicePrefix + id.String()
}

// Guard holds the two-factor secrets of one account and signs codes with the
// server-corrected time.
type Guard struct {
	sharedSecret   string
	identitySecret string
	clock          clock.Clock

	mu         sync.RWMutex
	steamID    SteamID
	deviceID   string
	timeOffset int64
}

// NewGuard validates both secrets. Either may be empty: an account without a
// shared secret cannot sign in unattended, one without an identity secret
// cannot confirm trades.
func NewGuard(sharedSecret, identitySecret string, clk clock.Clock) (*Guard, error) {
	if err := validateSecret(sharedSecret); err != nil {
		return nil, fmt.Errorf("shared secret: %w", err)
	}
	if err := validateSecret(identitySecret); err != nil {
		return nil, fmt.Errorf("identity secret: %w", err)
	}
	if clk == nil {
		clk = clock.Real()
	}

	return &Guard{
		sharedSecret:   sharedSecret,
		identitySecret: identitySecret,
		clock:          clk,
	}, nil
}

// SetSteamID binds the guard to an account and derives its device id.
func (g *Guard) SetSteamID(sid SteamID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.steamID = sid
	g.deviceID = GenerateDeviceID(sid)
}

// SetTimeOffset records the difference, in seconds, between Steam's clock
// and the local one.
func (g *Guard) SetTimeOffset(offset int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeOffset = offset
}

func (g *Guard) SteamID() SteamID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.steamID
}

func (g *Guard) DeviceID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.deviceID
}

func (g *Guard) HasSharedSecret() bool {
	return g.sharedSecret != ""
}

func (g *Guard) HasIdentitySecret() bool {
	return g.identitySecret != ""
}

// Timestamp returns the current server-corrected unix time.
func (g *Guard) Timestamp() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clock.Now().Unix() + g.timeOffset
}

func (g *Guard) OneTimeCode() (string, error) {
	if !g.HasSharedSecret() {
		return "", fmt.Errorf("%w: shared secret is not configured", ClientError)
	}
	return GenerateOneTimeCode(g.sharedSecret, g.Timestamp())
}

// ConfirmationCode signs tag at the current time and returns the code together
// with the timestamp it was generated for.
func (g *Guard) ConfirmationCode(tag string) (string, int64, error) {
	if !g.HasIdentitySecret() {
		return "", 0, IdentitySecretRequiredError
	}

	timestamp := g.Timestamp()
	code, err := GenerateConfirmationCode(g.identitySecret, tag, timestamp)
	if err != nil {
		return "", 0, err
	}

	return code, timestamp, nil
}
