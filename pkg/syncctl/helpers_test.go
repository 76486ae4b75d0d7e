package syncctl

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/topicsync/pkg/bus"
	"github.com/go-go-golems/topicsync/pkg/hashcodec"
	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/go-go-golems/topicsync/pkg/stream"
	"github.com/go-go-golems/topicsync/pkg/topics"
	"github.com/stretchr/testify/require"
)

var dashTopics = []string{"rawtx", "rawblock", "rawgovernancevote", "rawgovernanceobject"}

const testSessionID = "c5a1e2f3-4b6d-4e8f-9a0b-1c2d3e4f5a6b"

// fakeSubscriber records every call. Call n blocks until gates[n] is
// closed, when such a gate exists.
type fakeSubscriber struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	gates []chan struct{}
	ch    chan []string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan []string, 64)}
}

func (s *fakeSubscriber) SetSubscriptions(ctx context.Context, sessionID string, topics []string) (*protocol.ServerResult, error) {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, append([]string{}, topics...))
	err := s.err
	var gate chan struct{}
	if n < len(s.gates) {
		gate = s.gates[n]
	}
	s.mu.Unlock()
	s.ch <- topics

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &protocol.ServerResult{Result: "ok"}, nil
}

func (s *fakeSubscriber) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeSubscriber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSubscriber) next(t *testing.T) []string {
	t.Helper()
	select {
	case topics := <-s.ch:
		return topics
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a subscription call")
		return nil
	}
}

type fakeChannel struct {
	frames chan stream.Frame
	fail   chan error
	once   sync.Once
	done   chan struct{}
}

func (c *fakeChannel) Next() (stream.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.fail:
		return stream.Frame{}, err
	case <-c.done:
		return stream.Frame{}, io.ErrClosedPipe
	}
}

func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type fakeDialer struct {
	channels chan *fakeChannel
}

func (d *fakeDialer) Dial(ctx context.Context, sessionID string, lastEventID string) (stream.Channel, error) {
	ch := &fakeChannel{frames: make(chan stream.Frame, 16), fail: make(chan error, 1), done: make(chan struct{})}
	d.channels <- ch
	return ch, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeChannel {
	t.Helper()
	select {
	case ch := <-d.channels:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

// recorder is a message.Publisher that keeps decoded envelopes.
type recorder struct {
	mu      sync.Mutex
	envs    []bus.Envelope
	panicOn string
}

func (r *recorder) Publish(topic string, msgs ...*message.Message) error {
	for _, m := range msgs {
		env, err := bus.ParseEnvelope(m.Payload)
		if err != nil {
			return err
		}
		if env.Type == r.panicOn {
			panic("boom")
		}
		r.mu.Lock()
		r.envs = append(r.envs, env)
		r.mu.Unlock()
	}
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) ofType(typ string) []bus.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bus.Envelope
	for _, e := range r.envs {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	ctrl   *Controller
	reg    *topics.Registry
	sess   *stream.Session
	sub    *fakeSubscriber
	dialer *fakeDialer
	pub    *recorder
}

func newHarness(t *testing.T, allowed []string, fragment string) *harness {
	t.Helper()
	reg := topics.NewRegistry(allowed)
	Bootstrap(reg, hashcodec.Decode(fragment), []string{"rawtx", "rawblock", "rawgovernancevote"})

	dialer := &fakeDialer{channels: make(chan *fakeChannel, 16)}
	sess, err := stream.NewSession(stream.Options{SessionID: testSessionID, Dialer: dialer})
	require.NoError(t, err)

	h := &harness{reg: reg, sess: sess, sub: newFakeSubscriber(), dialer: dialer, pub: &recorder{}}
	h.ctrl, err = New(Options{
		Registry:   reg,
		Session:    sess,
		Subscriber: h.sub,
		Publisher:  h.pub,
		BaseURL:    "https://zmq.example.com",
	})
	require.NoError(t, err)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.ctrl.Run(ctx) }()
	go func() { _ = h.sess.Run(ctx) }()
	t.Cleanup(func() {
		h.sess.Close()
		cancel()
		<-h.ctrl.Done()
	})
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	return s
}

func (h *harness) messages(t *testing.T) []Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := h.ctrl.Messages(ctx)
	require.NoError(t, err)
	return m
}

// waitListeners waits until the current channel has exactly the given
// listeners.
func (h *harness) waitListeners(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := h.snapshot(t).Listeners
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

// waitMessages waits until the log holds n messages.
func (h *harness) waitMessages(t *testing.T, n int) []Message {
	t.Helper()
	require.Eventually(t, func() bool { return h.snapshot(t).Messages == n }, 2*time.Second, 5*time.Millisecond)
	return h.messages(t)
}
