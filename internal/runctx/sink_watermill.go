package runctx

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/joeycumines/rerun/internal/wire"
)

// Metadata keys set on every published watermill message.
const (
	MetadataSessionID = "session_id"
	MetadataSequence  = "sequence"
	MetadataKind      = "kind"
)

// WatermillSink publishes messages to a watermill Publisher, encoded with the
// wire codec, so any number of subscribers can follow a session.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillSink creates a new WatermillSink that publishes to the given
// publisher and topic.
func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// Publish encodes env.Msg and publishes it to the topic.
func (w *WatermillSink) Publish(env Envelope) error {
	payload, err := wire.Marshal(env.Msg)
	if err != nil {
		return errors.Wrap(err, "failed to encode forward message")
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataSessionID, env.SessionID)
	msg.Metadata.Set(MetadataSequence, strconv.FormatUint(env.Sequence, 10))
	msg.Metadata.Set(MetadataKind, string(env.Msg.Kind()))

	if err := w.publisher.Publish(w.topic, msg); err != nil {
		return errors.Wrapf(err, "failed to publish to topic %q", w.topic)
	}

	log.Trace().
		Str("topic", w.topic).
		Str("session_id", env.SessionID).
		Uint64("sequence", env.Sequence).
		Str("kind", string(env.Msg.Kind())).
		Msg("Published forward message")
	return nil
}

// DecodeEnvelope reverses Publish for a received watermill message.
func DecodeEnvelope(msg *message.Message) (Envelope, error) {
	seq, err := strconv.ParseUint(msg.Metadata.Get(MetadataSequence), 10, 64)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "message %s: invalid sequence", msg.UUID)
	}
	fm, err := wire.UnmarshalForwardMsg(msg.Payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "message %s", msg.UUID)
	}
	return Envelope{
		SessionID: msg.Metadata.Get(MetadataSessionID),
		Sequence:  seq,
		Msg:       fm,
	}, nil
}

var _ Sink = (*WatermillSink)(nil)
