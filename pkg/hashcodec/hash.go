// Package hashcodec maps a topic selection to and from the URL fragment
// used for share links, e.g. "#?topics=rawblock,rawtx".
//
// Encoding drops the heartbeat topic, so Decode(Encode(s)) returns s
// without it. That loss is intended: heartbeats are re-added at start-up
// when the allow-list permits them.
package hashcodec

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/go-go-golems/topicsync/pkg/topics"
)

// Prefix marks the start of the query inside the fragment.
const Prefix = "#?"

type Query struct {
	Topics []string
	// Submit asks for an immediate subscription after load.
	Submit bool
}

// Decode parses a fragment. A missing or empty topics key yields no topics,
// not an error. Unknown keys are ignored, and so is a malformed query.
func Decode(fragment string) Query {
	fragment = strings.TrimPrefix(fragment, "#")
	fragment = strings.TrimPrefix(fragment, "?")
	if fragment == "" {
		return Query{Topics: []string{}}
	}

	values, _ := url.ParseQuery(fragment)
	q := Query{Topics: SplitTopics(values.Get("topics"))}
	if _, ok := values["submit"]; ok {
		q.Submit = values.Get("submit") != "false"
	}
	return q
}

// SplitTopics splits a list on commas and whitespace, dropping empties.
func SplitTopics(list string) []string {
	fields := strings.FieldsFunc(list, func(c rune) bool {
		return c == ',' || unicode.IsSpace(c)
	})
	if fields == nil {
		return []string{}
	}
	return fields
}

// ShareList is the canonical sorted, comma-joined projection without the
// heartbeat topic.
func ShareList(selection []string) string {
	list := make([]string, 0, len(selection))
	for _, t := range selection {
		if t == topics.Heartbeat {
			continue
		}
		list = append(list, t)
	}
	sort.Strings(list)
	return strings.Join(list, ",")
}

// Encode returns the share fragment for a selection.
func Encode(selection []string) string {
	return Prefix + "topics=" + ShareList(selection)
}

// ShareURL returns the absolute share link for base, keeping only its
// scheme and host.
func ShareURL(base string, selection []string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return Encode(selection)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/" + Encode(selection)
}
