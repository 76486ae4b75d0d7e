package stream

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Frame is one dispatched server-sent event.
type Frame struct {
	// ID is the last event id seen on the channel, which may have been set
	// by an earlier event.
	ID    string
	Event string
	Data  string
	// Retry is the reconnection time the server asked for, if any.
	Retry time.Duration
}

// MaxFrameSize bounds a single line. Raw blocks are hex encoded, so a 2 MB
// block is a 4 MB data line.
const MaxFrameSize = 16 << 20

// Decoder reads server-sent events from a stream.
type Decoder struct {
	sc *bufio.Scanner

	lastID string
	event  string
	data   []string
	retry  time.Duration
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)
	return &Decoder{sc: sc}
}

// Next returns the next complete event. It returns io.EOF when the stream
// ends cleanly; a partially received event is discarded.
func (d *Decoder) Next() (Frame, error) {
	for d.sc.Scan() {
		line := d.sc.Text()

		if line == "" {
			if d.data == nil {
				d.event = ""
				continue
			}
			f := Frame{
				ID:    d.lastID,
				Event: d.event,
				Data:  strings.Join(d.data, "\n"),
				Retry: d.retry,
			}
			d.event = ""
			d.data = nil
			return f, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			d.event = value
		case "data":
			d.data = append(d.data, value)
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	if err := d.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
