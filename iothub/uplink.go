package iothub

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// APIVersion pins the device-to-cloud REST surface.
const APIVersion = "2016-02-03"

// HostSuffix is the public cloud domain of IoT hubs.
const HostSuffix = ".azure-devices.net"

// Response is what the hub answered. Body is not interpreted.
type Response struct {
	StatusCode int
	Body       string
}

// OK reports whether the hub accepted the event.
func (r Response) OK() bool { return r.StatusCode == http.StatusNoContent }

// ErrTokenExpired is returned by Send for a token past its expiry. Tokens
// must be minted right before use.
var ErrTokenExpired = errors.New("iothub: token expired before use")

// Client posts device-to-cloud events for one device.
type Client struct {
	Host     string
	DeviceID string
	HTTP     *http.Client
	// Clock decides token expiry; nil means the wall clock.
	Clock clock.Clock
}

// NewClient returns a client for creds. A nil httpClient means
// http.DefaultClient.
func NewClient(creds Credentials, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{Host: creds.Host, DeviceID: creds.DeviceID, HTTP: httpClient, Clock: clock.New()}
}

// URL is the events endpoint of the device.
func (c *Client) URL() string {
	return fmt.Sprintf("https://%s/devices/%s/messages/events?api-version=%s", c.Host, c.DeviceID, APIVersion)
}

// Send performs exactly one POST of payload authorized by token. Any HTTP
// response, whatever its status, is returned without error; failures to
// get a response come back as *TransportError. An expired token is
// refused without touching the network.
func (c *Client) Send(ctx context.Context, token SignedToken, payload []byte) (Response, error) {
	now := time.Now()
	if c.Clock != nil {
		now = c.Clock.Now()
	}
	if token.Expired(now) {
		return Response{}, errors.Wrapf(ErrTokenExpired, "expired at %d", token.Expiry)
	}
	u := c.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return Response{}, errors.Wrap(err, "iothub: build request")
	}
	req.Header.Set("Authorization", token.String())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, &TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &TransportError{URL: u, Err: errors.Wrap(err, "read body")}
	}
	return Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

// Uplink mints a token per call and delivers one envelope.
type Uplink struct {
	client *Client
	signer *Signer
}

// NewUplink pairs client with signer. Both share the signer's clock, so a
// token is judged by the same time it was minted with.
func NewUplink(client *Client, signer *Signer) *Uplink {
	client.Clock = signer.clock
	return &Uplink{client: client, signer: signer}
}

// Deliver sends payload once. A status other than 204 is returned as
// *RejectedError carrying the response body. There is no retry.
func (u *Uplink) Deliver(ctx context.Context, payload []byte) error {
	resp, err := u.client.Send(ctx, u.signer.Mint(), payload)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &RejectedError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// DeliverJSON marshals v and delivers it.
func (u *Uplink) DeliverJSON(ctx context.Context, v interface{}) error {
	payload, err := Marshal(v)
	if err != nil {
		return err
	}
	return u.Deliver(ctx, payload)
}
