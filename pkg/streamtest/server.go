// Package streamtest provides an in-memory push server that speaks the
// event-source and subscription contract, for tests.
package streamtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/google/uuid"
)

// Call is one recorded PUT.
type Call struct {
	SessionID string
	Topics    []string
	Auth      string
}

type Event struct {
	ID    string
	Event string
	Data  string
}

type client struct {
	id     string
	events chan Event
	drop   chan struct{}
}

// Server is a fake push server. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	clients    map[string]*client
	topics     map[string]map[string]bool
	calls      []Call
	connects   map[string]int
	lastIDs    []string
	failStatus int
	failBody   string

	callCh    chan Call
	connectCh chan string
}

func New() *Server {
	s := &Server{
		clients:   map[string]*client{},
		topics:    map[string]map[string]bool{},
		connects:  map[string]int{},
		callCh:    make(chan Call, 256),
		connectCh: make(chan string, 256),
	}

	r := chi.NewRouter()
	r.Get(protocol.EventSourcePath+"{id}", s.stream)
	r.Put(protocol.EventSourcePath+"{id}", s.set)
	s.Server = httptest.NewServer(r)
	return s
}

// Calls returns every PUT received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call{}, s.calls...)
}

// CallCh receives each PUT as it happens.
func (s *Server) CallCh() <-chan Call { return s.callCh }

// ConnectCh receives the session id of each new stream connection.
func (s *Server) ConnectCh() <-chan string { return s.connectCh }

func (s *Server) Connects(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects[id]
}

// LastEventIDs returns the Last-Event-ID header of every connection, in
// order. Empty strings mark connections without one.
func (s *Server) LastEventIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.lastIDs...)
}

// Subscriptions returns the sorted topics the session is subscribed to.
func (s *Server) Subscriptions(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for topic, ids := range s.topics {
		if ids[id] {
			out = append(out, topic)
		}
	}
	sort.Strings(out)
	return out
}

// FailWith makes subsequent PUTs answer status with body. Status 0 resets.
func (s *Server) FailWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failBody = body
}

// Publish sends a named event to every session subscribed to topic and
// reports how many received it.
func (s *Server) Publish(topic, id, data string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sid := range s.topics[topic] {
		if c, ok := s.clients[sid]; ok {
			c.events <- Event{ID: id, Event: topic, Data: data}
			n++
		}
	}
	return n
}

// SendDefault sends an unnamed event to every connected session.
func (s *Server) SendDefault(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.events <- Event{Data: data}
	}
}

// Drop closes the session's stream. The server forgets its subscriptions,
// as the real server does when a client goes away.
func (s *Server) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return
	}
	close(c.drop)
	s.forget(id)
}

func (s *Server) forget(id string) {
	delete(s.clients, id)
	for _, ids := range s.topics {
		delete(ids, id)
	}
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ServerError{Error: "'id' must be a valid UUIDv4"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{id: id, events: make(chan Event, 64), drop: make(chan struct{})}
	s.mu.Lock()
	if old, ok := s.clients[id]; ok {
		close(old.drop)
		s.forget(id)
	}
	s.clients[id] = c
	s.connects[id]++
	s.lastIDs = append(s.lastIDs, r.Header.Get("Last-Event-ID"))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	notify(s.connectCh, id)

	defer func() {
		s.mu.Lock()
		if s.clients[id] == c {
			s.forget(id)
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.drop:
			return
		case ev := <-c.events:
			var b strings.Builder
			if ev.ID != "" {
				fmt.Fprintf(&b, "id: %s\n", ev.ID)
			}
			if ev.Event != "" {
				fmt.Fprintf(&b, "event: %s\n", ev.Event)
			}
			for _, line := range strings.Split(ev.Data, "\n") {
				fmt.Fprintf(&b, "data: %s\n", line)
			}
			b.WriteString("\n")
			_, _ = w.Write([]byte(b.String()))
			flusher.Flush()
		}
	}
}

func (s *Server) set(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	id := chi.URLParam(r, "id")

	var req protocol.SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ServerError{Error: err.Error()})
		return
	}

	call := Call{SessionID: id, Topics: req.Topics, Auth: r.Header.Get("Authorization")}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	status, body := s.failStatus, s.failBody
	_, connected := s.clients[id]
	if status == 0 && connected {
		for _, ids := range s.topics {
			delete(ids, id)
		}
		for _, topic := range req.Topics {
			if s.topics[topic] == nil {
				s.topics[topic] = map[string]bool{}
			}
			s.topics[topic][id] = true
		}
	}
	s.mu.Unlock()
	notify(s.callCh, call)

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	if !connected {
		writeJSON(w, http.StatusBadRequest, protocol.ServerError{Error: fmt.Sprintf("'%s' is not a current client", id)})
		return
	}
	writeJSON(w, http.StatusOK, protocol.ServerResult{
		Result: fmt.Sprintf("debug: replaced subscriptions: '%s'", strings.Join(req.Topics, ", ")),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}
