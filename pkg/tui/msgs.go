package tui

import (
	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
)

type SelectionMsg struct {
	Selection syncctl.SelectionChanged
}

type MessageAppendedMsg struct {
	Message syncctl.Message
}

type SubscriptionResultMsg struct {
	Result protocol.SubscriptionResult
}

type ChannelStateMsg struct {
	State syncctl.ChannelState
}

type NoticeMsg struct {
	Notice syncctl.Notice
}

// ActionRequestMsg asks the root model to forward an action to the
// controller.
type ActionRequestMsg struct {
	Action syncctl.Action
}
