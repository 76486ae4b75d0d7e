package syncctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/topicsync/pkg/topics"
)

// Message is one entry of the append-only message log.
type Message struct {
	Seq   int       `json:"seq"`
	ID    string    `json:"id,omitempty"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
	At    time.Time `json:"at"`
}

// Shown reports whether m passes the visibility filter. Default messages
// always do.
func (m Message) Shown(visibility map[string]bool) bool {
	return m.Event == topics.Default || visibility[m.Event]
}

func (m Message) String() string {
	if m.Event == topics.Default {
		return fmt.Sprintf("(%s) %s", m.Event, m.Data)
	}
	return fmt.Sprintf("[%s]\n%s", m.Event, m.Data)
}

// MessageLog grows for the whole session and is never truncated.
type MessageLog struct {
	entries []Message
}

func (l *MessageLog) Append(m Message) Message {
	m.Seq = len(l.entries) + 1
	if m.At.IsZero() {
		m.At = time.Now()
	}
	l.entries = append(l.entries, m)
	return m
}

func (l *MessageLog) Len() int { return len(l.entries) }

func (l *MessageLog) All() []Message {
	return append([]Message{}, l.entries...)
}

// Shown returns the entries that pass the visibility filter, oldest first.
func (l *MessageLog) Shown(visibility map[string]bool) []Message {
	var out []Message
	for _, m := range l.entries {
		if m.Shown(visibility) {
			out = append(out, m)
		}
	}
	return out
}

// prettyData indents JSON payloads. Heartbeats and non-JSON data are kept
// as they are.
func prettyData(topic, data string) string {
	if topic == topics.Heartbeat {
		return data
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(data), "", "  "); err != nil {
		return data
	}
	return buf.String()
}
