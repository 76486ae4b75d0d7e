// Package bus carries domain events from the sync controller to front-ends
// over an in-process watermill pub/sub.
package bus

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// TopicEvents carries controller events to front-ends.
	TopicEvents = "topicsync.events"
	// TopicActions carries user actions from front-ends to the controller.
	TopicActions = "topicsync.ui.actions"
)

const (
	TypeSelectionChanged   = "selection.changed"
	TypeMessageAppended    = "message.appended"
	TypeSubscriptionResult = "subscription.result"
	TypeChannelState       = "channel.state"
	TypeNotice             = "notice"

	TypeActionRequest = "ui.action.request"
)

type Envelope struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

func NewEnvelope(typ string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "marshal payload")
	}
	return Envelope{Type: typ, At: time.Now(), Payload: b}, nil
}

func (e Envelope) MarshalJSONBytes() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal envelope")
	}
	return b, nil
}

func ParseEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, errors.Wrap(err, "parse envelope")
	}
	if e.Type == "" {
		return Envelope{}, errors.New("envelope without type")
	}
	return e, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return errors.Wrapf(json.Unmarshal(e.Payload, v), "decode %s payload", e.Type)
}

// Publish wraps payload in an envelope and publishes it on TopicEvents.
func Publish(pub message.Publisher, typ string, payload any) error {
	return PublishTo(pub, TopicEvents, typ, payload)
}

func PublishTo(pub message.Publisher, topic string, typ string, payload any) error {
	env, err := NewEnvelope(typ, payload)
	if err != nil {
		return err
	}
	b, err := env.MarshalJSONBytes()
	if err != nil {
		return err
	}
	return pub.Publish(topic, message.NewMessage(watermill.NewUUID(), b))
}

// NewPubSub returns an in-memory pub/sub that logs through log. Publish
// waits for every subscriber to ack, which keeps events in order;
// subscribers must Ack each message.
func NewPubSub(log zerolog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, NewLogger(log))
}
