package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/topicsync/pkg/bus"
	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
	"github.com/pkg/errors"
)

// ToMsg turns a controller event envelope into the matching tea message.
func ToMsg(env bus.Envelope) (tea.Msg, error) {
	switch env.Type {
	case bus.TypeSelectionChanged:
		var v syncctl.SelectionChanged
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return SelectionMsg{Selection: v}, nil
	case bus.TypeMessageAppended:
		var v syncctl.MessageAppended
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return MessageAppendedMsg{Message: v.Message}, nil
	case bus.TypeSubscriptionResult:
		var v protocol.SubscriptionResult
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return SubscriptionResultMsg{Result: v}, nil
	case bus.TypeChannelState:
		var v syncctl.ChannelState
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return ChannelStateMsg{State: v}, nil
	case bus.TypeNotice:
		var v syncctl.Notice
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return NoticeMsg{Notice: v}, nil
	default:
		return nil, errors.Errorf("unknown event type %q", env.Type)
	}
}
