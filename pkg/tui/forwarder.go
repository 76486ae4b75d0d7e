package tui

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/topicsync/pkg/bus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Forwarder feeds controller events from the bus into a bubbletea program.
type Forwarder struct {
	Sub    message.Subscriber
	Send   func(tea.Msg)
	Logger zerolog.Logger

	msgs <-chan *message.Message
}

// Subscribe attaches to the bus. Events published before it are lost, so
// call it before starting the controller. Run subscribes when needed.
func (f *Forwarder) Subscribe(ctx context.Context) error {
	if f.Sub == nil {
		return errors.New("missing Subscriber")
	}
	msgs, err := f.Sub.Subscribe(ctx, bus.TopicEvents)
	if err != nil {
		return errors.Wrap(err, "subscribe events")
	}
	f.msgs = msgs
	return nil
}

func (f *Forwarder) Run(ctx context.Context) error {
	if f.Send == nil {
		return errors.New("missing Send")
	}
	if f.msgs == nil {
		if err := f.Subscribe(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-f.msgs:
			if !ok {
				return nil
			}
			f.forward(msg)
			msg.Ack()
		}
	}
}

func (f *Forwarder) forward(msg *message.Message) {
	env, err := bus.ParseEnvelope(msg.Payload)
	if err != nil {
		f.Logger.Warn().Err(err).Str("uuid", msg.UUID).Msg("dropping event")
		return
	}
	m, err := ToMsg(env)
	if err != nil {
		f.Logger.Debug().Err(err).Msg("dropping event")
		return
	}
	f.Send(m)
}
