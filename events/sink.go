// Package events publishes transcript changes on a Watermill bus so renderers and
// other observers can follow a session without holding a reference to it.
package events

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/creastat/chat"
	"github.com/creastat/chat/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultTopic is the topic transcript changes are published on.
const DefaultTopic = "chat.transcript"

// TranscriptChanged is the payload of a published change.
type TranscriptChanged struct {
	SessionID string          `json:"session_id"`
	Turns     []chat.ViewTurn `json:"turns"`
	Greeting  string          `json:"greeting,omitempty"`
	At        time.Time       `json:"at"`
}

// Anchor returns the turn a renderer scrolls to.
func (e *TranscriptChanged) Anchor() (chat.ViewTurn, bool) {
	for i := len(e.Turns) - 1; i >= 0; i-- {
		if e.Turns[i].Anchor {
			return e.Turns[i], true
		}
	}
	return chat.ViewTurn{}, false
}

// WatermillSink publishes session changes to a Watermill publisher.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillSink creates a sink. An empty topic means DefaultTopic.
func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// Publish serializes the change to JSON and publishes it.
func (w *WatermillSink) Publish(change session.Change) error {
	payload, err := json.Marshal(TranscriptChanged{
		SessionID: change.SessionID,
		Turns:     change.View,
		Greeting:  change.Greeting,
		At:        time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "could not encode transcript change")
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("session_id", change.SessionID)

	if err := w.publisher.Publish(w.topic, msg); err != nil {
		return errors.Wrapf(err, "could not publish to %s", w.topic)
	}

	log.Trace().Str("topic", w.topic).Str("session_id", change.SessionID).Msg("Published transcript change")
	return nil
}

// OnChange is a session.WithOnChange listener. Publish errors are logged.
func (w *WatermillSink) OnChange(change session.Change) {
	if err := w.Publish(change); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish transcript change")
	}
}

// Decode parses a message published by WatermillSink.
func Decode(msg *message.Message) (*TranscriptChanged, error) {
	e := &TranscriptChanged{}
	if err := json.Unmarshal(msg.Payload, e); err != nil {
		return nil, errors.Wrap(err, "could not decode transcript change")
	}
	return e, nil
}
