// Package syncctl keeps the topic selection, the share hash, the push
// channel listeners and the remote subscription converging on each other.
//
// Everything the controller owns is touched from the goroutine running
// Run only. Public methods queue a task for that goroutine and return.
// Subscription calls run on their own goroutines and queue their result;
// overlapping calls are not cancelled, and each carries the full selection
// taken when it was issued.
package syncctl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/topicsync/pkg/bus"
	"github.com/go-go-golems/topicsync/pkg/hashcodec"
	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/go-go-golems/topicsync/pkg/snippets"
	"github.com/go-go-golems/topicsync/pkg/stream"
	"github.com/go-go-golems/topicsync/pkg/subscription"
	"github.com/go-go-golems/topicsync/pkg/topics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Subscriber replaces the remote topic set of a session.
type Subscriber interface {
	SetSubscriptions(ctx context.Context, sessionID string, topics []string) (*protocol.ServerResult, error)
}

type Options struct {
	Registry   *topics.Registry
	Session    *stream.Session
	Subscriber Subscriber
	// Publisher receives domain events on bus.TopicEvents. Optional.
	Publisher message.Publisher
	// BaseURL is the push server; it names the host in share links and
	// snippets.
	BaseURL     string
	PreviewKind snippets.Kind
	Snippets    snippets.Options
	// SubmitOnStart subscribes right away instead of waiting for the
	// channel to open.
	SubmitOnStart bool
	Logger        zerolog.Logger
}

type Controller struct {
	opts  Options
	reg   *topics.Registry
	sess  *stream.Session
	log   zerolog.Logger
	tasks chan func()
	done  chan struct{}

	// owned by the Run goroutine
	ctx        context.Context
	messages   MessageLog
	listeners  map[string]stream.Listener
	selection  SelectionChanged
	channel    ChannelState
	submits    int
	lastResult *protocol.SubscriptionResult
}

func New(opts Options) (*Controller, error) {
	if opts.Registry == nil {
		return nil, errors.New("missing Registry")
	}
	if opts.Session == nil {
		return nil, errors.New("missing Session")
	}
	if opts.Subscriber == nil {
		return nil, errors.New("missing Subscriber")
	}
	if opts.PreviewKind == "" {
		opts.PreviewKind = snippets.KindCurl
	}
	if opts.Snippets.BaseURL == "" {
		opts.Snippets.BaseURL = opts.BaseURL
	}
	c := &Controller{
		opts:      opts,
		reg:       opts.Registry,
		sess:      opts.Session,
		log:       opts.Logger.With().Str("session_id", opts.Session.ID()).Logger(),
		tasks:     make(chan func(), 256),
		done:      make(chan struct{}),
		listeners: map[string]stream.Listener{},
		channel:   ChannelState{State: stream.StateConnecting.String()},
	}
	c.sess.OnDefault(c.onDefault)
	return c, nil
}

// Bootstrap selects the initial topics: those of the share hash, or the
// defaults when the hash names none, plus the heartbeat topic when the
// allow-list has it. Unknown topics are dropped silently.
func Bootstrap(reg *topics.Registry, q hashcodec.Query, defaults []string) {
	initial := q.Topics
	if len(initial) == 0 {
		initial = defaults
	}
	for _, t := range initial {
		_ = reg.Select(t)
	}
	if reg.Validate(topics.Heartbeat) && !reg.Has(topics.Heartbeat) {
		_ = reg.Select(topics.Heartbeat)
	}
}

// Run processes tasks and session events until ctx ends or the session
// closes. It does not start the session.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)

	c.safely("start", func() {
		c.render()
		if c.opts.SubmitOnStart {
			c.submit("start")
		}
	})

	events := c.sess.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.tasks:
			c.safely("task", fn)
		case ev := <-events:
			c.safely("event", func() { c.handle(ev) })
			if ev.Kind == stream.EventClosed {
				return nil
			}
		case <-c.sess.Done():
			c.drain(events)
			return nil
		}
	}
}

// drain handles what the session queued before it stopped, ending with
// a Closed event whether or not the session managed to queue one.
func (c *Controller) drain(events <-chan stream.Event) {
	for {
		select {
		case ev := <-events:
			c.safely("event", func() { c.handle(ev) })
			if ev.Kind == stream.EventClosed {
				return
			}
		default:
			closed := stream.Event{Kind: stream.EventClosed, Generation: c.sess.Generation()}
			c.safely("event", func() { c.handle(closed) })
			return
		}
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) post(fn func()) bool {
	select {
	case c.tasks <- fn:
		return true
	case <-c.done:
		return false
	}
}

// AddTopic selects topic and subscribes to it. Unknown topics are ignored.
func (c *Controller) AddTopic(topic string) {
	c.post(func() { c.addTopic(topic) })
}

// RemoveTopic drops topic from the selection and resubscribes.
func (c *Controller) RemoveTopic(topic string) {
	c.post(func() { c.removeTopic(topic) })
}

// SetVisible shows or hides a selected topic. The subscription is kept.
func (c *Controller) SetVisible(topic string, visible bool) {
	c.post(func() {
		if err := c.reg.SetVisible(topic, visible); err != nil {
			c.log.Debug().Str("topic", topic).Msg("ignoring unknown topic")
			return
		}
		c.render()
	})
}

// Submit resubscribes the current selection.
func (c *Controller) Submit() {
	c.post(func() { c.submit("submit") })
}

func (c *Controller) SetPreviewKind(kind snippets.Kind) {
	c.post(func() {
		if _, err := snippets.Render(kind, c.opts.Snippets, nil); err != nil {
			c.log.Debug().Str("kind", string(kind)).Msg("ignoring preview kind")
			return
		}
		c.opts.PreviewKind = kind
		c.render()
	})
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !c.post(func() { reply <- c.snapshot() }) {
		return Snapshot{}, errors.New("controller stopped")
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, errors.New("controller stopped")
	}
}

// Messages returns the message log.
func (c *Controller) Messages(ctx context.Context) ([]Message, error) {
	reply := make(chan []Message, 1)
	if !c.post(func() { reply <- c.messages.All() }) {
		return nil, errors.New("controller stopped")
	}
	select {
	case m := <-reply:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errors.New("controller stopped")
	}
}

func (c *Controller) addTopic(topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}
	existed := c.reg.Has(topic)
	if err := c.reg.Select(topic); err != nil {
		c.log.Debug().Str("topic", topic).Msg("ignoring unknown topic")
		return
	}
	c.render()
	if existed {
		return
	}
	c.submit("add")
}

func (c *Controller) removeTopic(topic string) {
	if !c.reg.Has(topic) {
		return
	}
	c.reg.Deselect(topic)
	c.render()
	c.submit("remove")
}

// render recomputes the tag state, share link and preview and publishes
// them.
func (c *Controller) render() {
	selection := c.reg.CurrentSelection()
	preview, err := snippets.Render(c.opts.PreviewKind, c.opts.Snippets, selection)
	if err != nil {
		preview = err.Error()
	}
	c.selection = SelectionChanged{
		Selection:   selection,
		Visibility:  c.reg.Visibility(),
		Unselected:  c.reg.Unselected(),
		ShareHash:   hashcodec.Encode(selection),
		ShareURL:    hashcodec.ShareURL(c.opts.BaseURL, selection),
		PreviewKind: c.opts.PreviewKind,
		Preview:     preview,
	}
	c.publish(bus.TypeSelectionChanged, c.selection)
}

// submit sends the full current selection.
func (c *Controller) submit(reason string) {
	selection := c.reg.CurrentSelection()
	c.submits++
	seq := c.submits
	ctx := c.ctx
	id := c.sess.ID()
	c.log.Info().Strs("topics", selection).Str("reason", reason).Int("seq", seq).Msg("set subscriptions")

	go func() {
		var (
			res *protocol.ServerResult
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("subscription call panicked: %v", r)
				}
			}()
			res, err = c.opts.Subscriber.SetSubscriptions(ctx, id, selection)
		}()
		c.post(func() { c.applyResult(seq, selection, res, err) })
	}()
}

func (c *Controller) applyResult(seq int, sent []string, res *protocol.ServerResult, err error) {
	result := &protocol.SubscriptionResult{SessionID: c.sess.ID(), Topics: sent}
	if err != nil {
		result.Error = &protocol.Error{Message: err.Error()}
		var te *subscription.TransportError
		if errors.As(err, &te) {
			result.Error.Code = te.StatusCode
			if te.Message != "" {
				result.Error.Message = te.Message
			}
		}
		c.log.Error().Err(err).Int("seq", seq).Msg("form submit: failed")
	} else {
		if res != nil {
			result.Result = res.Result
		}
		for _, t := range sent {
			if c.reg.Has(t) {
				c.attach(t)
			}
		}
	}
	c.lastResult = result
	c.publish(bus.TypeSubscriptionResult, result)
}

// attach puts the topic's listener on the current channel, reusing the one
// created the first time the topic was selected.
func (c *Controller) attach(topic string) {
	fn, ok := c.listeners[topic]
	if !ok {
		fn = func(f stream.Frame) { c.appendMessage(topic, f) }
		c.listeners[topic] = fn
	}
	c.sess.AttachListener(topic, fn)
}

// reattach puts the cached listeners of the selected topics on a freshly
// opened channel. Topics never subscribed successfully have none and wait
// for the submit result.
func (c *Controller) reattach() {
	for _, t := range c.reg.CurrentSelection() {
		if fn, ok := c.listeners[t]; ok {
			c.sess.AttachListener(t, fn)
		}
	}
}

func (c *Controller) appendMessage(topic string, f stream.Frame) {
	m := c.messages.Append(Message{ID: f.ID, Event: topic, Data: prettyData(topic, f.Data)})
	c.publish(bus.TypeMessageAppended, MessageAppended{Message: m})
}

func (c *Controller) onDefault(f stream.Frame) {
	m := c.messages.Append(Message{ID: f.ID, Event: topics.Default, Data: f.Data})
	c.publish(bus.TypeMessageAppended, MessageAppended{Message: m})
}

func (c *Controller) handle(ev stream.Event) {
	switch ev.Kind {
	case stream.EventOpened:
		c.sess.Dispatch(ev)
		c.reattach()
		c.setChannel(stream.StateOpen, ev.Generation, "")
		c.submit("open")
	case stream.EventFrame:
		c.sess.Dispatch(ev)
	case stream.EventError:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		c.setChannel(stream.StateReconnecting, ev.Generation, msg)
	case stream.EventClosed:
		c.setChannel(stream.StateClosed, ev.Generation, "")
	}
}

func (c *Controller) setChannel(st stream.State, gen int, errText string) {
	c.channel = ChannelState{
		State:      st.String(),
		Generation: gen,
		Reconnects: c.sess.Reconnects(),
		Error:      errText,
	}
	c.publish(bus.TypeChannelState, c.channel)
}

func (c *Controller) snapshot() Snapshot {
	listeners := c.sess.Listeners()
	sort.Strings(listeners)
	sel := c.selection
	sel.Selection = append([]string{}, sel.Selection...)
	sel.Unselected = append([]string{}, sel.Unselected...)
	sel.Visibility = c.reg.Visibility()
	return Snapshot{
		SessionID:  c.sess.ID(),
		Selection:  sel,
		Channel:    c.channel,
		Listeners:  listeners,
		Messages:   c.messages.Len(),
		Submits:    c.submits,
		LastResult: c.lastResult,
	}
}

func (c *Controller) publish(typ string, payload any) {
	if c.opts.Publisher == nil {
		return
	}
	if err := bus.Publish(c.opts.Publisher, typ, payload); err != nil {
		c.log.Warn().Err(err).Str("type", typ).Msg("publish failed")
	}
}

// safely is the top-level error boundary: a panic in fn becomes a single
// notice and the loop carries on. It must not panic itself.
func (c *Controller) safely(what string, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		defer func() { _ = recover() }()
		err := fmt.Errorf("%v", r)
		c.log.Error().Err(err).Str("in", what).Msg("caught uncaught error")
		c.publish(bus.TypeNotice, Notice{
			Message: "Error: one of our developers let a bug slip through the cracks: " + err.Error(),
		})
	}()
	fn()
}
