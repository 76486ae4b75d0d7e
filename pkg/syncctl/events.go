package syncctl

import (
	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/go-go-golems/topicsync/pkg/snippets"
)

// SelectionChanged is published after every change to the selection or its
// visibility, before any subscription call it causes.
type SelectionChanged struct {
	Selection   []string        `json:"selection"`
	Visibility  map[string]bool `json:"visibility"`
	Unselected  []string        `json:"unselected"`
	ShareHash   string          `json:"share_hash"`
	ShareURL    string          `json:"share_url"`
	PreviewKind snippets.Kind   `json:"preview_kind"`
	Preview     string          `json:"preview"`
}

type MessageAppended struct {
	Message Message `json:"message"`
}

type ChannelState struct {
	State      string `json:"state"`
	Generation int    `json:"generation"`
	Reconnects int    `json:"reconnects"`
	Error      string `json:"error,omitempty"`
}

// Notice is a user-facing message for an unexpected failure.
type Notice struct {
	Message string `json:"message"`
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	SessionID  string                       `json:"session_id"`
	Selection  SelectionChanged             `json:"selection"`
	Channel    ChannelState                 `json:"channel"`
	Listeners  []string                     `json:"listeners"`
	Messages   int                          `json:"messages"`
	Submits    int                          `json:"submits"`
	LastResult *protocol.SubscriptionResult `json:"last_result,omitempty"`
}
