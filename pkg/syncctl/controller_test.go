package syncctl

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-go-golems/topicsync/pkg/bus"
	"github.com/go-go-golems/topicsync/pkg/hashcodec"
	"github.com/go-go-golems/topicsync/pkg/stream"
	"github.com/go-go-golems/topicsync/pkg/streamtest"
	"github.com/go-go-golems/topicsync/pkg/subscription"
	"github.com/go-go-golems/topicsync/pkg/topics"
	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	defaults := []string{"rawtx", "rawblock", "rawgovernancevote"}

	reg := topics.NewRegistry(dashTopics)
	Bootstrap(reg, hashcodec.Decode("#?topics=rawtx,bogus"), defaults)
	require.Equal(t, []string{"rawtx"}, reg.CurrentSelection())

	reg = topics.NewRegistry(dashTopics)
	Bootstrap(reg, hashcodec.Decode(""), defaults)
	require.Equal(t, []string{"rawblock", "rawgovernancevote", "rawtx"}, reg.CurrentSelection())

	reg = topics.NewRegistry(append([]string{topics.Heartbeat}, dashTopics...))
	Bootstrap(reg, hashcodec.Decode("#?topics=rawblock"), defaults)
	require.Equal(t, []string{topics.Heartbeat, "rawblock"}, reg.CurrentSelection())
	require.Equal(t, "#?topics=rawblock", hashcodec.Encode(reg.CurrentSelection()))
}

func TestController_SubscribesOnOpenAndTracksEdits(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx,rawblock")
	h.start(t)

	h.dialer.next(t)
	require.Equal(t, []string{"rawblock", "rawtx"}, h.sub.next(t))
	h.waitListeners(t, "rawblock", "rawtx")

	s := h.snapshot(t)
	require.Equal(t, 1, s.Submits)
	require.Equal(t, testSessionID, s.SessionID)
	require.Equal(t, "open", s.Channel.State)
	require.Equal(t, "#?topics=rawblock,rawtx", s.Selection.ShareHash)
	require.Equal(t, []string{"rawgovernancevote", "rawgovernanceobject"}, s.Selection.Unselected)

	h.ctrl.AddTopic("bogus")
	s = h.snapshot(t)
	require.Equal(t, 1, s.Submits)
	require.Equal(t, []string{"rawblock", "rawtx"}, s.Selection.Selection)

	h.ctrl.AddTopic("rawtx")
	require.Equal(t, 1, h.snapshot(t).Submits)

	h.ctrl.RemoveTopic("rawblock")
	require.Equal(t, []string{"rawtx"}, h.sub.next(t))
	s = h.snapshot(t)
	require.Equal(t, "#?topics=rawtx", s.Selection.ShareHash)
	require.Equal(t, "https://zmq.example.com/#?topics=rawtx", s.Selection.ShareURL)
	require.Equal(t, 2, s.Submits)

	h.ctrl.AddTopic(" rawgovernancevote ")
	require.Equal(t, []string{"rawgovernancevote", "rawtx"}, h.sub.next(t))

	changes := h.pub.ofType(bus.TypeSelectionChanged)
	require.NotEmpty(t, changes)
	var last SelectionChanged
	require.NoError(t, changes[len(changes)-1].Decode(&last))
	require.Equal(t, []string{"rawgovernancevote", "rawtx"}, last.Selection)
	require.Contains(t, last.Preview, "rawgovernancevote,rawtx")
}

func TestController_AppendsFramesAndDefaults(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx")
	h.start(t)

	ch := h.dialer.next(t)
	h.sub.next(t)
	h.waitListeners(t, "rawtx")

	ch.frames <- stream.Frame{ID: "1", Event: "rawtx", Data: `{"a":1}`}
	ch.frames <- stream.Frame{Data: "hello"}
	ch.frames <- stream.Frame{Event: "message", Data: "again"}

	msgs := h.waitMessages(t, 3)
	require.Equal(t, "rawtx", msgs[0].Event)
	require.Equal(t, "{\n  \"a\": 1\n}", msgs[0].Data)
	require.Equal(t, "1", msgs[0].ID)
	require.Equal(t, topics.Default, msgs[1].Event)
	require.Equal(t, "hello", msgs[1].Data)
	require.Equal(t, topics.Default, msgs[2].Event)
	require.Equal(t, []int{1, 2, 3}, []int{msgs[0].Seq, msgs[1].Seq, msgs[2].Seq})

	require.Len(t, h.pub.ofType(bus.TypeMessageAppended), 3)
}

func TestController_HiddenTopicStaysSubscribed(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx,rawblock")
	h.start(t)

	ch := h.dialer.next(t)
	h.sub.next(t)
	h.waitListeners(t, "rawblock", "rawtx")

	h.ctrl.SetVisible("rawblock", false)
	s := h.snapshot(t)
	require.Equal(t, 1, s.Submits)
	require.Equal(t, []string{"rawblock", "rawtx"}, s.Selection.Selection)
	require.Equal(t, map[string]bool{"rawblock": false, "rawtx": true}, s.Selection.Visibility)
	require.Equal(t, "#?topics=rawblock,rawtx", s.Selection.ShareHash)

	ch.frames <- stream.Frame{Event: "rawblock", Data: "b"}
	ch.frames <- stream.Frame{Event: "rawtx", Data: "t"}
	msgs := h.waitMessages(t, 2)

	var log MessageLog
	for _, m := range msgs {
		log.Append(m)
	}
	shown := log.Shown(s.Selection.Visibility)
	require.Len(t, shown, 1)
	require.Equal(t, "rawtx", shown[0].Event)
}

func TestController_ReconnectResubmitsOnce(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx")
	h.start(t)

	first := h.dialer.next(t)
	h.sub.next(t)
	h.waitListeners(t, "rawtx")
	first.frames <- stream.Frame{ID: "1", Event: "rawtx", Data: "one"}
	h.waitMessages(t, 1)

	first.fail <- io.ErrUnexpectedEOF
	second := h.dialer.next(t)
	require.Equal(t, []string{"rawtx"}, h.sub.next(t))
	h.waitListeners(t, "rawtx")

	s := h.snapshot(t)
	require.Equal(t, 2, s.Submits)
	require.Equal(t, 1, s.Messages)
	require.Equal(t, 1, s.Channel.Reconnects)
	require.Equal(t, 2, s.Channel.Generation)

	second.frames <- stream.Frame{ID: "2", Event: "rawtx", Data: "two"}
	msgs := h.waitMessages(t, 2)
	require.Equal(t, "two", msgs[1].Data)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 2, h.snapshot(t).Messages)
	require.Equal(t, 2, h.sub.callCount())

	var sawReconnecting bool
	for _, env := range h.pub.ofType(bus.TypeChannelState) {
		var st ChannelState
		require.NoError(t, env.Decode(&st))
		if st.State == "reconnecting" {
			sawReconnecting = true
			require.NotEmpty(t, st.Error)
		}
	}
	require.True(t, sawReconnecting)
}

func TestController_ReattachesOnOpenWhenResubmitFails(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx")
	h.start(t)

	first := h.dialer.next(t)
	h.sub.next(t)
	h.waitListeners(t, "rawtx")

	h.sub.setErr(&subscription.TransportError{StatusCode: 503, Message: "unavailable"})
	first.fail <- io.ErrUnexpectedEOF
	second := h.dialer.next(t)
	h.sub.next(t)
	require.Eventually(t, func() bool {
		s := h.snapshot(t)
		return s.LastResult != nil && !s.LastResult.Ok()
	}, 2*time.Second, 5*time.Millisecond)

	s := h.snapshot(t)
	require.Equal(t, 2, s.Channel.Generation)
	require.Equal(t, []string{"rawtx"}, s.Listeners)

	second.frames <- stream.Frame{Event: "rawtx", Data: "after"}
	msgs := h.waitMessages(t, 1)
	require.Equal(t, "after", msgs[0].Data)
}

func TestController_StopsWhenSessionClosedBeforeRun(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx")
	h.sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.sess.Run(ctx) }()
	go func() { _ = h.ctrl.Run(ctx) }()

	select {
	case <-h.ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller kept running after the session closed")
	}
	states := h.pub.ofType(bus.TypeChannelState)
	require.NotEmpty(t, states)
	var st ChannelState
	require.NoError(t, states[len(states)-1].Decode(&st))
	require.Equal(t, "closed", st.State)
	require.Zero(t, h.sub.callCount())
}

func TestController_PreviewUsesBaseURL(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx")
	var err error
	h.ctrl, err = New(Options{
		Registry:   h.reg,
		Session:    h.sess,
		Subscriber: h.sub,
		Publisher:  h.pub,
		BaseURL:    "http://127.0.0.1:8080/proxy",
	})
	require.NoError(t, err)
	h.start(t)

	require.Contains(t, h.snapshot(t).Selection.Preview,
		`"http://127.0.0.1:8080/proxy/api/zmq/eventsource/$(uuidgen)"`)
}

func TestController_AtMostOneListenerUnderToggling(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx")
	h.start(t)

	ch := h.dialer.next(t)
	h.sub.next(t)
	h.waitListeners(t, "rawtx")

	for i := 0; i < 3; i++ {
		h.ctrl.RemoveTopic("rawtx")
		h.sub.next(t)
		h.ctrl.AddTopic("rawtx")
		h.sub.next(t)
	}
	require.Eventually(t, func() bool {
		s := h.snapshot(t)
		return s.LastResult != nil && len(s.LastResult.Topics) == 1
	}, 2*time.Second, 5*time.Millisecond)
	h.waitListeners(t, "rawtx")

	ch.frames <- stream.Frame{Event: "rawtx", Data: "x"}
	h.waitMessages(t, 1)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, h.snapshot(t).Messages)
}

func TestController_AppliesResultsInCompletionOrder(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx,rawblock")
	openGate, removeGate := make(chan struct{}), make(chan struct{})
	h.sub.gates = []chan struct{}{openGate, removeGate}
	h.start(t)

	h.dialer.next(t)
	require.Equal(t, []string{"rawblock", "rawtx"}, h.sub.next(t))
	h.ctrl.RemoveTopic("rawblock")
	require.Equal(t, []string{"rawtx"}, h.sub.next(t))

	close(removeGate)
	require.Eventually(t, func() bool {
		s := h.snapshot(t)
		return s.LastResult != nil && len(s.LastResult.Topics) == 1
	}, 2*time.Second, 5*time.Millisecond)
	h.waitListeners(t, "rawtx")

	close(openGate)
	require.Eventually(t, func() bool {
		s := h.snapshot(t)
		return s.LastResult != nil && len(s.LastResult.Topics) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// the late result names rawblock, which is no longer selected
	s := h.snapshot(t)
	require.Equal(t, []string{"rawtx"}, s.Listeners)
	require.Equal(t, []string{"rawtx"}, s.Selection.Selection)
}

func TestController_TransportErrorKeepsSelection(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx")
	h.sub.setErr(&subscription.TransportError{StatusCode: 400, Message: "'id' is not a current client"})
	h.start(t)

	h.dialer.next(t)
	h.sub.next(t)
	require.Eventually(t, func() bool { return h.snapshot(t).LastResult != nil }, 2*time.Second, 5*time.Millisecond)

	s := h.snapshot(t)
	require.False(t, s.LastResult.Ok())
	require.Equal(t, 400, s.LastResult.Error.Code)
	require.Equal(t, "'id' is not a current client", s.LastResult.Error.Message)
	require.Equal(t, []string{"rawtx"}, s.Selection.Selection)
	require.Empty(t, s.Listeners)

	results := h.pub.ofType(bus.TypeSubscriptionResult)
	require.Len(t, results, 1)

	h.sub.setErr(nil)
	h.ctrl.Submit()
	h.sub.next(t)
	h.waitListeners(t, "rawtx")
	require.True(t, h.snapshot(t).LastResult.Ok())
}

func TestController_PanicBecomesNotice(t *testing.T) {
	h := newHarness(t, dashTopics, "#?topics=rawtx")
	h.pub.panicOn = bus.TypeMessageAppended
	h.start(t)

	ch := h.dialer.next(t)
	h.sub.next(t)
	h.waitListeners(t, "rawtx")

	ch.frames <- stream.Frame{Event: "rawtx", Data: "x"}
	require.Eventually(t, func() bool { return len(h.pub.ofType(bus.TypeNotice)) == 1 }, 2*time.Second, 5*time.Millisecond)

	var n Notice
	require.NoError(t, h.pub.ofType(bus.TypeNotice)[0].Decode(&n))
	require.Contains(t, n.Message, "boom")

	h.ctrl.AddTopic("rawblock")
	require.Equal(t, []string{"rawblock", "rawtx"}, h.sub.next(t))
	require.Equal(t, 1, h.snapshot(t).Messages)
}

func TestController_EndToEnd(t *testing.T) {
	srv := streamtest.New()
	defer srv.Close()

	reg := topics.NewRegistry(dashTopics)
	Bootstrap(reg, hashcodec.Decode("#?topics=rawtx,rawblock"), nil)

	sess, err := stream.NewSession(stream.Options{
		SessionID: testSessionID,
		Dialer:    &stream.HTTPDialer{BaseURL: srv.URL},
	})
	require.NoError(t, err)
	ctrl, err := New(Options{
		Registry:   reg,
		Session:    sess,
		Subscriber: subscription.New(subscription.Options{BaseURL: srv.URL}),
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { _ = ctrl.Run(ctx) }()
	go func() { _ = sess.Run(ctx) }()
	defer func() {
		sess.Close()
		cancel()
		<-ctrl.Done()
	}()

	call := <-srv.CallCh()
	require.Equal(t, []string{"rawblock", "rawtx"}, call.Topics)
	require.Equal(t, testSessionID, call.SessionID)

	listenersReady := func(want int) func() bool {
		return func() bool {
			s, err := ctrl.Snapshot(ctx)
			return err == nil && len(s.Listeners) == want
		}
	}
	require.Eventually(t, listenersReady(2), 5*time.Second, 10*time.Millisecond)

	require.Equal(t, 1, srv.Publish("rawtx", "10", `{"txid":"ab"}`))
	srv.SendDefault("welcome")
	require.Eventually(t, func() bool {
		s, err := ctrl.Snapshot(ctx)
		return err == nil && s.Messages == 2
	}, 5*time.Second, 10*time.Millisecond)

	srv.Drop(testSessionID)
	call = <-srv.CallCh()
	require.Equal(t, []string{"rawblock", "rawtx"}, call.Topics)
	require.Equal(t, 2, srv.Connects(testSessionID))
	require.Equal(t, []string{"", "10"}, srv.LastEventIDs())
	require.Eventually(t, listenersReady(2), 5*time.Second, 10*time.Millisecond)

	msgs, err := ctrl.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "rawtx", msgs[0].Event)
	require.Equal(t, topics.Default, msgs[1].Event)
}
