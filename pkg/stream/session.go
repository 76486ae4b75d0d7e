package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/topicsync/pkg/topics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Options struct {
	SessionID string
	Dialer    Dialer
	Backoff   Backoff
	Logger    zerolog.Logger
	// EventBuffer sizes the Events channel.
	EventBuffer int
}

// Session owns the push channel of one stream session id.
//
// Run dials, reads and redials on its own goroutine and reports what
// happens on Events. The owner feeds every event back through Dispatch,
// from a single goroutine; listener bookkeeping happens there. A dropped
// channel is reopened with the same session id until Close is called or
// the context given to Run ends.
type Session struct {
	opts     Options
	events   chan Event
	done     chan struct{}
	doneOnce sync.Once

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	closed     bool
	dialGen    int
	lastID     string
	reconnects atomic.Int64

	// owner side
	current   int
	router    *router
	onDefault Listener
	stale     int
}

func NewSession(opts Options) (*Session, error) {
	if opts.SessionID == "" {
		return nil, errors.New("missing SessionID")
	}
	if opts.Dialer == nil {
		return nil, errors.New("missing Dialer")
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	return &Session{
		opts:   opts,
		events: make(chan Event, opts.EventBuffer),
		done:   make(chan struct{}),
		state:  StateConnecting,
		router: newRouter(),
	}, nil
}

func (s *Session) ID() string { return s.opts.SessionID }

func (s *Session) Events() <-chan Event { return s.events }

// Done is closed once Run has returned, after the Closed event was queued
// on Events. Closed is dropped when Events is full; Done is not.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reconnects counts channel errors that led to a reconnect.
func (s *Session) Reconnects() int { return int(s.reconnects.Load()) }

// Close moves the session to its terminal state. Errors seen after Close
// do not trigger reconnects.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.state = StateClosed
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if !s.closed {
		s.state = st
	}
	s.mu.Unlock()
}

// Run blocks until the session is closed.
func (s *Session) Run(ctx context.Context) error {
	log := s.opts.Logger.With().Str("session_id", s.opts.SessionID).Logger()
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		s.finish(log)
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()
	defer s.finish(log)

	attempt := 0
	for {
		if s.isClosed() || ctx.Err() != nil {
			return nil
		}

		s.mu.Lock()
		s.dialGen++
		gen := s.dialGen
		lastID := s.lastID
		s.mu.Unlock()

		log.Debug().Int("generation", gen).Msg("opening event source")
		ch, err := s.opts.Dialer.Dial(ctx, s.opts.SessionID, lastID)
		if err == nil {
			attempt = 0
			s.setState(StateOpen)
			if !s.emit(ctx, Event{Kind: EventOpened, Generation: gen}) {
				_ = ch.Close()
				return nil
			}
			err = s.pump(ctx, gen, ch)
			_ = ch.Close()
		}

		if s.isClosed() || ctx.Err() != nil {
			return nil
		}

		attempt++
		s.reconnects.Add(1)
		s.setState(StateReconnecting)
		chErr := &ChannelError{SessionID: s.opts.SessionID, Attempt: attempt, Err: err}
		log.Warn().Err(err).Int("generation", gen).Int("attempt", attempt).
			Msg("EventSource restarted unexpectedly")
		if !s.emit(ctx, Event{Kind: EventError, Generation: gen, Err: chErr}) {
			return nil
		}

		if d := s.opts.Backoff.Delay(attempt); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
		s.setState(StateConnecting)
	}
}

// finish marks the session closed, queues Closed and closes Done.
func (s *Session) finish(log zerolog.Logger) {
	s.mu.Lock()
	s.closed = true
	s.state = StateClosed
	gen := s.dialGen
	s.mu.Unlock()
	// owner may have stopped reading
	select {
	case s.events <- Event{Kind: EventClosed, Generation: gen}:
	default:
		log.Debug().Int("generation", gen).Msg("events full, closed event dropped")
	}
	s.doneOnce.Do(func() { close(s.done) })
	log.Debug().Msg("event source closed")
}

func (s *Session) pump(ctx context.Context, gen int, ch Channel) error {
	for {
		f, err := ch.Next()
		if err != nil {
			return err
		}
		if f.ID != "" {
			s.mu.Lock()
			s.lastID = f.ID
			s.mu.Unlock()
		}
		if !s.emit(ctx, Event{Kind: EventFrame, Generation: gen, Frame: f}) {
			return ctx.Err()
		}
	}
}

func (s *Session) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Dispatch applies an event from Events. An Opened event replaces the
// listener registry with an empty one for the new channel; listeners must
// be attached again. Frames from any other generation are dropped.
// It reports whether a frame reached a listener or the default handler.
func (s *Session) Dispatch(ev Event) bool {
	switch ev.Kind {
	case EventOpened:
		s.current = ev.Generation
		s.router = newRouter()
		return false
	case EventFrame:
		if ev.Generation != s.current {
			s.stale++
			return false
		}
		if ev.Frame.Event == "" || ev.Frame.Event == "message" {
			if s.onDefault == nil {
				return false
			}
			f := ev.Frame
			f.Event = topics.Default
			s.onDefault(f)
			return true
		}
		return s.router.deliver(ev.Frame.Event, ev.Frame)
	default:
		return false
	}
}

// OnDefault sets the handler for frames without a topic. It survives
// reconnects.
func (s *Session) OnDefault(fn Listener) { s.onDefault = fn }

// AttachListener registers fn for topic on the current channel, removing
// any listener already attached for it.
func (s *Session) AttachListener(topic string, fn Listener) {
	s.router.attach(topic, fn)
}

func (s *Session) DetachListener(topic string) {
	s.router.detach(topic)
}

func (s *Session) Attached(topic string) bool {
	return s.router.attached(topic)
}

// Listeners returns the topics with a listener on the current channel.
func (s *Session) Listeners() []string {
	return s.router.topics()
}

// Generation is the channel generation the owner has adopted.
func (s *Session) Generation() int { return s.current }
