package stream

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/pkg/errors"
)

// Channel is one open push connection.
type Channel interface {
	Next() (Frame, error)
	Close() error
}

// Dialer opens the push channel of a session. lastEventID is empty on the
// first dial.
type Dialer interface {
	Dial(ctx context.Context, sessionID string, lastEventID string) (Channel, error)
}

// HTTPDialer opens event-source channels over HTTP.
type HTTPDialer struct {
	BaseURL  string
	Username string
	Password string
	// Client must not set a Timeout; streams are long-lived.
	Client *http.Client
}

func (d *HTTPDialer) Dial(ctx context.Context, sessionID string, lastEventID string) (Channel, error) {
	u, err := protocol.EventSourceURL(d.BaseURL, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "build event source url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build event source request")
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	if d.Username != "" {
		req.SetBasicAuth(d.Username, d.Password)
	}

	hc := d.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "open event source")
	}

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, errors.Errorf("event source returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mt != "text/event-stream" {
		_ = resp.Body.Close()
		return nil, errors.Errorf("event source returned content type %q", resp.Header.Get("Content-Type"))
	}

	return &httpChannel{body: resp.Body, dec: NewDecoder(resp.Body)}, nil
}

type httpChannel struct {
	body io.ReadCloser
	dec  *Decoder
}

func (c *httpChannel) Next() (Frame, error) {
	return c.dec.Next()
}

func (c *httpChannel) Close() error {
	return c.body.Close()
}
