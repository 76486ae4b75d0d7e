package stream

import "sync"

// Listener receives the frames of one topic.
type Listener func(Frame)

// maxBuffered caps frames held for a topic that has no listener yet.
const maxBuffered = 256

// router is the listener registry of one channel. It holds at most one
// listener per topic. Frames for a topic without a listener are buffered
// and replayed, in order, to the next listener attached for it.
type router struct {
	mu        sync.Mutex
	listeners map[string]Listener
	buffer    map[string][]Frame
	dropped   int
}

func newRouter() *router {
	return &router{
		listeners: map[string]Listener{},
		buffer:    map[string][]Frame{},
	}
}

// attach replaces any listener already registered for topic.
func (r *router) attach(topic string, fn Listener) {
	r.mu.Lock()
	delete(r.listeners, topic)
	r.listeners[topic] = fn
	buf := r.buffer[topic]
	delete(r.buffer, topic)
	r.mu.Unlock()

	for _, f := range buf {
		fn(f)
	}
}

func (r *router) detach(topic string) {
	r.mu.Lock()
	delete(r.listeners, topic)
	r.mu.Unlock()
}

func (r *router) attached(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.listeners[topic]
	return ok
}

func (r *router) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.listeners))
	for t := range r.listeners {
		out = append(out, t)
	}
	return out
}

// deliver reports whether a listener received the frame.
func (r *router) deliver(topic string, f Frame) bool {
	r.mu.Lock()
	fn, ok := r.listeners[topic]
	if !ok {
		if len(r.buffer[topic]) < maxBuffered {
			r.buffer[topic] = append(r.buffer[topic], f)
		} else {
			r.dropped++
		}
	}
	r.mu.Unlock()

	if ok {
		fn(f)
	}
	return ok
}
