package runctx

import (
	"github.com/joeycumines/rerun/internal/wire"
)

// Envelope is one outbound message of a session, numbered in enqueue order.
type Envelope struct {
	SessionID string
	Sequence  uint64
	Msg       *wire.ForwardMsg
}

// Sink is a destination for outbound messages. Implementations may deliver
// asynchronously; the run context never waits on delivery.
type Sink interface {
	// Publish delivers env. An error is logged by the caller and otherwise
	// ignored.
	Publish(env Envelope) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(env Envelope) error

// Publish calls f(env).
func (f SinkFunc) Publish(env Envelope) error {
	return f(env)
}

var _ Sink = SinkFunc(nil)
