package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-go-golems/topicsync/pkg/streamtest"
	"github.com/go-go-golems/topicsync/pkg/subscription"
	"github.com/stretchr/testify/require"
)

const testSessionID = "3a6f0c2e-9d4b-4e7a-b1c8-5f2e7d9a0b13"

func TestHTTPDialer_StreamsNamedEvents(t *testing.T) {
	srv := streamtest.New()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := &HTTPDialer{BaseURL: srv.URL}
	ch, err := d.Dial(ctx, testSessionID, "")
	require.NoError(t, err)
	defer func() { _ = ch.Close() }()
	<-srv.ConnectCh()

	_, err = subscription.New(subscription.Options{BaseURL: srv.URL}).
		SetSubscriptions(ctx, testSessionID, []string{"rawtx"})
	require.NoError(t, err)

	require.Equal(t, 1, srv.Publish("rawtx", "7", `{"raw":"0100"}`))
	require.Equal(t, 0, srv.Publish("rawblock", "8", `{}`))

	f, err := ch.Next()
	require.NoError(t, err)
	require.Equal(t, Frame{ID: "7", Event: "rawtx", Data: `{"raw":"0100"}`}, f)
}

func TestHTTPDialer_SendsLastEventID(t *testing.T) {
	srv := streamtest.New()
	defer srv.Close()

	ch, err := (&HTTPDialer{BaseURL: srv.URL}).Dial(context.Background(), testSessionID, "12")
	require.NoError(t, err)
	_ = ch.Close()
	require.Equal(t, []string{"12"}, srv.LastEventIDs())
}

func TestHTTPDialer_RejectsBadResponses(t *testing.T) {
	srv := streamtest.New()
	defer srv.Close()

	_, err := (&HTTPDialer{BaseURL: srv.URL}).Dial(context.Background(), "not-a-uuid", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "400")

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer plain.Close()
	_, err = (&HTTPDialer{BaseURL: plain.URL}).Dial(context.Background(), testSessionID, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "content type")
}
