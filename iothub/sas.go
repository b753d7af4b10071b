package iothub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// TokenTTL is how long a minted token stays valid. Tokens are minted per
// request, so this only has to cover one round trip.
const TokenTTL = 10 * time.Second

const tokenFormat = "SharedAccessSignature sig=%s&se=%d&skn=%s&sr=%s"

// SignedToken is a shared access signature scoped to one device resource.
type SignedToken struct {
	Signature   string // base64, query-escaped
	Expiry      int64  // unix seconds
	ResourceURI string // lowercased
}

// String renders the value of the Authorization header. The key name is
// always empty for device-scoped keys.
func (t SignedToken) String() string {
	return fmt.Sprintf(tokenFormat, t.Signature, t.Expiry, "", t.ResourceURI)
}

// Expired reports whether the token can no longer be presented at now.
func (t SignedToken) Expired(now time.Time) bool {
	return now.Unix() >= t.Expiry
}

// ResourceURI is the signed subject for a device: host/devices/id, lowercased.
func ResourceURI(host, deviceID string) string {
	return strings.ToLower(host + "/devices/" + deviceID)
}

// SignToken builds a token for deviceID on resourceHost valid for TokenTTL
// from now. The only error is a ConfigurationError for a key that is not
// valid base64.
func SignToken(resourceHost, deviceID, sharedKeyBase64 string, now time.Time) (SignedToken, error) {
	key, err := decodeKey(sharedKeyBase64)
	if err != nil {
		return SignedToken{}, err
	}
	return sign(ResourceURI(resourceHost, deviceID), key, now), nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &ConfigurationError{Field: "access key", Err: err}
	}
	return key, nil
}

func sign(resourceURI string, key []byte, now time.Time) SignedToken {
	expiry := now.Add(TokenTTL).Unix()
	toSign := resourceURI + "\n" + strconv.FormatInt(expiry, 10)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(toSign))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return SignedToken{
		Signature:   url.QueryEscape(sig),
		Expiry:      expiry,
		ResourceURI: resourceURI,
	}
}

// Credentials identify one device on one hub. They are loaded once and
// never change for the life of the process.
type Credentials struct {
	DeviceID string
	Host     string
	Key      []byte
}

// NewCredentials decodes the base64 access key once. A malformed key is a
// *ConfigurationError.
func NewCredentials(deviceID, host, sharedKeyBase64 string) (Credentials, error) {
	key, err := decodeKey(sharedKeyBase64)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{DeviceID: deviceID, Host: host, Key: key}, nil
}

// ResourceURI is the lowercased signed subject of these credentials.
func (c Credentials) ResourceURI() string { return ResourceURI(c.Host, c.DeviceID) }

// Token mints a fresh token at now.
func (c Credentials) Token(now time.Time) SignedToken {
	return sign(c.ResourceURI(), c.Key, now)
}

// Signer mints tokens for fixed credentials using its clock.
type Signer struct {
	creds Credentials
	clock clock.Clock
}

// NewSigner mints tokens for creds; a nil clock means the wall clock.
func NewSigner(creds Credentials, clk clock.Clock) *Signer {
	if clk == nil {
		clk = clock.New()
	}
	return &Signer{creds: creds, clock: clk}
}

// Mint returns a token valid for TokenTTL from the current clock reading.
func (s *Signer) Mint() SignedToken {
	return s.creds.Token(s.clock.Now())
}
