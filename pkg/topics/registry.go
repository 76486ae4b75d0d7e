package topics

import (
	"fmt"
	"sort"
	"strings"
)

// Heartbeat is the keep-alive pseudo-topic. It can be selected like any
// other allowed topic but never appears in share state.
const Heartbeat = "debug:ticker"

// Default is the event name given to messages that arrive without a topic.
const Default = "default"

// UnknownTopicError is returned when a topic is outside the allow-list.
type UnknownTopicError struct {
	Topic string
}

func (e *UnknownTopicError) Error() string {
	return fmt.Sprintf("topic %q is not known or not allowed", e.Topic)
}

// IsComment reports whether a config entry is a comment rather than a topic.
func IsComment(entry string) bool {
	entry = strings.TrimSpace(entry)
	return entry == "" ||
		strings.HasPrefix(entry, "//") ||
		strings.HasPrefix(entry, "/*") ||
		strings.HasPrefix(entry, "#")
}

// Registry holds the allow-list and the visibility map.
//
// A key present in the visibility map is selected and subscribed remotely.
// Its value only controls whether messages for it are displayed. An absent
// key has never been selected (or was removed).
//
// Registry is not safe for concurrent use; the sync controller owns it.
type Registry struct {
	allowed    []string
	allowedSet map[string]struct{}
	visibility map[string]bool
}

// NewRegistry builds a registry from an ordered allow-list. Comment entries
// and duplicates are dropped.
func NewRegistry(allowed []string) *Registry {
	r := &Registry{
		allowedSet: map[string]struct{}{},
		visibility: map[string]bool{},
	}
	for _, t := range allowed {
		t = strings.TrimSpace(t)
		if IsComment(t) {
			continue
		}
		if _, ok := r.allowedSet[t]; ok {
			continue
		}
		r.allowedSet[t] = struct{}{}
		r.allowed = append(r.allowed, t)
	}
	return r
}

func (r *Registry) Validate(topic string) bool {
	_, ok := r.allowedSet[topic]
	return ok
}

// Select marks topic as selected and visible.
func (r *Registry) Select(topic string) error {
	if !r.Validate(topic) {
		return &UnknownTopicError{Topic: topic}
	}
	r.visibility[topic] = true
	return nil
}

// Deselect removes the key entirely.
func (r *Registry) Deselect(topic string) {
	delete(r.visibility, topic)
}

// SetVisible hides or shows a selected topic without touching its
// subscription. Topics that are not selected are left alone.
func (r *Registry) SetVisible(topic string, visible bool) error {
	if !r.Validate(topic) {
		return &UnknownTopicError{Topic: topic}
	}
	if _, ok := r.visibility[topic]; !ok {
		return nil
	}
	r.visibility[topic] = visible
	return nil
}

func (r *Registry) Has(topic string) bool {
	_, ok := r.visibility[topic]
	return ok
}

func (r *Registry) Visible(topic string) bool {
	return r.visibility[topic]
}

// CurrentSelection returns the selected topics sorted lexicographically.
func (r *Registry) CurrentSelection() []string {
	out := make([]string, 0, len(r.visibility))
	for t := range r.visibility {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Visibility returns a copy of the visibility map.
func (r *Registry) Visibility() map[string]bool {
	out := make(map[string]bool, len(r.visibility))
	for k, v := range r.visibility {
		out[k] = v
	}
	return out
}

// Allowed returns the allow-list in config order.
func (r *Registry) Allowed() []string {
	return append([]string{}, r.allowed...)
}

// Unselected returns allowed topics that are not currently shown, in
// config order. These are the options offered by the topic input.
func (r *Registry) Unselected() []string {
	var out []string
	for _, t := range r.allowed {
		if !r.visibility[t] {
			out = append(out, t)
		}
	}
	return out
}
