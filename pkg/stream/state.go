package stream

import (
	"fmt"
	"math"
	"time"
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type EventKind int

const (
	// EventOpened starts a new channel generation.
	EventOpened EventKind = iota
	EventFrame
	// EventError means the channel dropped and a reconnect follows.
	EventError
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventFrame:
		return "frame"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is what a Session reports to its owner. Generation identifies the
// channel object the event belongs to; every successful dial starts a new
// one.
type Event struct {
	Kind       EventKind
	Generation int
	Frame      Frame
	Err        error
}

// ChannelError is a dropped or failed push channel.
type ChannelError struct {
	SessionID string
	Attempt   int
	Err       error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("event source %s restarted (attempt %d): %v", e.SessionID, e.Attempt, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Backoff spaces out reconnects. The zero value reconnects immediately.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Min <= 0 || attempt <= 0 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}
	d := float64(b.Min) * math.Pow(factor, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
