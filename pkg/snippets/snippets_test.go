package snippets

import (
	"strings"
	"testing"

	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestCurl(t *testing.T) {
	got := Curl(Options{BaseURL: "https://zmq.example.com"}, []string{"rawtx", "rawblock"})
	require.Equal(t, `curl --fail-with-body -N -G \
    "https://zmq.example.com/api/zmq/eventsource/$(uuidgen)" \
    --user "api:null" \
    -d 'dbg_topics=rawblock,rawtx'`, got)
}

func TestFetch(t *testing.T) {
	got := Fetch(Options{BaseURL: "https://localhost:8080/", Username: "me", Password: "secret"}, []string{"rawtx", "debug:ticker"})
	require.True(t, strings.HasPrefix(got, "// 1. Open EventSource\n"))
	require.Contains(t, got, "let baseUrl = `https://localhost:8080/api/zmq/eventsource/${sseId}`;")
	require.Contains(t, got, `let topics = ["debug:ticker", "rawtx"];`)
	require.Contains(t, got, "btoa(`me:secret`)")
	require.Contains(t, got, "method: 'PUT',")
	require.Contains(t, got, "body: JSON.stringify({ topics: topics }),")
}

func TestRender(t *testing.T) {
	s, err := Render(KindCurl, Options{BaseURL: "https://h"}, nil)
	require.NoError(t, err)
	require.Contains(t, s, "dbg_topics='")

	_, err = Render("wget", Options{}, nil)
	require.Error(t, err)
}

func TestSnippetsKeepSchemeAndPrefix(t *testing.T) {
	opts := Options{BaseURL: "http://127.0.0.1:8080/proxy"}
	want, err := protocol.EventSourceURL(opts.BaseURL, "")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080/proxy/api/zmq/eventsource/", want)

	require.Contains(t, Curl(opts, []string{"rawtx"}), `"`+want+`$(uuidgen)"`)
	require.Contains(t, Fetch(opts, []string{"rawtx"}), "let baseUrl = `"+want+"${sseId}`;")
}
