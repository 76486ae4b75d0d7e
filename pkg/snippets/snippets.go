// Package snippets renders curl and fetch examples equivalent to the calls
// the client makes.
package snippets

import (
	"sort"
	"strings"

	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindCurl  Kind = "curl"
	KindFetch Kind = "fetch"
)

type Options struct {
	// BaseURL is the push server the client talks to, scheme and path
	// prefix included.
	BaseURL  string
	Username string
	Password string
}

func (o Options) withDefaults() Options {
	if o.Username == "" {
		o.Username = "api"
	}
	if o.Password == "" {
		o.Password = "null"
	}
	return o
}

const curlTemplate = `curl --fail-with-body -N -G \
    "{{url}}$(uuidgen)" \
    --user "{{user}}:{{pass}}" \
    -d 'dbg_topics={{topics}}'`

const fetchTemplate = `// 1. Open EventSource
let sseId = crypto.randomUUID();
let baseUrl = ` + "`{{url}}${sseId}`" + `;
let sse = new EventSource(baseUrl, { withCredentials: false });

// 2. Listen on local Events
let topics = ["{{topics}}"];
for (let topic of topics) {
    sse.addEventListener(topic, function ($ev) {
        console.info(` + "`[${topic}] ${$ev.data}`" + `);
    });
}

// Subscribe to remote Topics
let basicAuth = btoa(` + "`{{user}}:{{pass}}`" + `);
let resp = await fetch(baseUrl, {
    method: 'PUT',
    headers: {
        "Authorization": ` + "`Basic ${basicAuth}`" + `,
        "Content-Type": "application/json",
    },
    body: JSON.stringify({ topics: topics }),
});
let result = await resp.text();
console.log(` + "`[DEBUG] status: ${result}`" + `);`

func sorted(topics []string) []string {
	out := append([]string{}, topics...)
	sort.Strings(out)
	return out
}

// streamURL is the event-source URL without the session id, built the way
// the client builds its own.
func streamURL(base string) string {
	u, err := protocol.EventSourceURL(base, "")
	if err != nil {
		return strings.TrimSuffix(base, "/") + protocol.EventSourcePath
	}
	return u
}

func render(tmpl string, opts Options, topicList string) string {
	opts = opts.withDefaults()
	return strings.NewReplacer(
		"{{url}}", streamURL(opts.BaseURL),
		"{{user}}", opts.Username,
		"{{pass}}", opts.Password,
		"{{topics}}", topicList,
	).Replace(tmpl)
}

// Curl renders a curl command that streams the topics.
func Curl(opts Options, topics []string) string {
	return render(curlTemplate, opts, strings.Join(sorted(topics), ","))
}

// Fetch renders browser code that opens the stream and subscribes.
func Fetch(opts Options, topics []string) string {
	return render(fetchTemplate, opts, strings.Join(sorted(topics), `", "`))
}

func Render(kind Kind, opts Options, topics []string) (string, error) {
	switch kind {
	case KindCurl:
		return Curl(opts, topics), nil
	case KindFetch:
		return Fetch(opts, topics), nil
	default:
		return "", errors.Errorf("must select either 'curl' or 'fetch' preview style, got %q", kind)
	}
}
