package syncctl

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/topicsync/pkg/bus"
	"github.com/go-go-golems/topicsync/pkg/snippets"
	"github.com/pkg/errors"
)

type ActionKind string

const (
	ActionAdd        ActionKind = "add"
	ActionRemove     ActionKind = "remove"
	ActionSetVisible ActionKind = "set_visible"
	ActionSubmit     ActionKind = "submit"
	ActionPreview    ActionKind = "preview"
)

// Action is a user request coming from a front-end.
type Action struct {
	Kind    ActionKind    `json:"kind"`
	Topic   string        `json:"topic,omitempty"`
	Visible bool          `json:"visible,omitempty"`
	Preview snippets.Kind `json:"preview,omitempty"`
}

// Apply queues the operation a names.
func (c *Controller) Apply(a Action) error {
	switch a.Kind {
	case ActionAdd:
		c.AddTopic(a.Topic)
	case ActionRemove:
		c.RemoveTopic(a.Topic)
	case ActionSetVisible:
		c.SetVisible(a.Topic, a.Visible)
	case ActionSubmit:
		c.Submit()
	case ActionPreview:
		c.SetPreviewKind(a.Preview)
	default:
		return errors.Errorf("unknown action %q", a.Kind)
	}
	return nil
}

// ServeActions applies actions published on bus.TopicActions until ctx
// ends. Malformed actions are logged and acked.
func (c *Controller) ServeActions(ctx context.Context, sub message.Subscriber) error {
	msgs, err := sub.Subscribe(ctx, bus.TopicActions)
	if err != nil {
		return errors.Wrap(err, "subscribe actions")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			c.serveAction(msg)
			msg.Ack()
		}
	}
}

func (c *Controller) serveAction(msg *message.Message) {
	env, err := bus.ParseEnvelope(msg.Payload)
	if err != nil {
		c.log.Warn().Err(err).Str("uuid", msg.UUID).Msg("dropping action")
		return
	}
	if env.Type != bus.TypeActionRequest {
		return
	}
	var a Action
	if err := env.Decode(&a); err != nil {
		c.log.Warn().Err(err).Msg("dropping action")
		return
	}
	if err := c.Apply(a); err != nil {
		c.log.Warn().Err(err).Msg("dropping action")
	}
}

// PublishAction sends a to a controller serving bus.TopicActions.
func PublishAction(pub message.Publisher, a Action) error {
	return bus.PublishTo(pub, bus.TopicActions, bus.TypeActionRequest, a)
}
