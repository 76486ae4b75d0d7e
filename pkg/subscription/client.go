// Package subscription registers which topics the server should push to a
// stream session.
package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// TransportError is a failed subscription call: either the request never
// got a response (Err set) or the server answered non-2xx (StatusCode set,
// Message holds the response body).
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "subscription request failed: " + e.Err.Error()
	}
	return fmt.Sprintf("subscription request failed (%d): %s", e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Options struct {
	BaseURL string
	// Username and Password are sent as basic auth when Username is set.
	Username string
	Password string
	// Timeout bounds a single call. Zero means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	opts Options
	hc   *http.Client
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{opts: opts, hc: hc}
}

// SetSubscriptions replaces the session's full topic set on the server.
// It does not retry.
func (c *Client) SetSubscriptions(ctx context.Context, sessionID string, topics []string) (*protocol.ServerResult, error) {
	if topics == nil {
		topics = []string{}
	}
	u, err := protocol.EventSourceURL(c.opts.BaseURL, sessionID)
	if err != nil {
		return nil, &TransportError{Err: errors.Wrap(err, "build subscription url")}
	}
	body, err := json.Marshal(protocol.SubscriptionRequest{Topics: topics})
	if err != nil {
		return nil, errors.Wrap(err, "marshal subscription request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: errors.Wrap(err, "build subscription request")}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: errors.Wrap(err, "read subscription response")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}

	var result protocol.ServerResult
	if err := json.Unmarshal(b, &result); err != nil {
		// some proxies answer with plain text
		result.Result = strings.TrimSpace(string(b))
	}
	c.opts.Logger.Info().
		Str("session_id", sessionID).
		Strs("topics", topics).
		Str("result", result.Result).
		Msg("set subscriptions")
	return &result, nil
}
