package runctx

// NullSink discards every message.
type NullSink struct{}

// NewNullSink creates a new NullSink instance.
func NewNullSink() *NullSink {
	return &NullSink{}
}

// Publish discards env and always returns nil.
func (n *NullSink) Publish(env Envelope) error {
	return nil
}

var _ Sink = (*NullSink)(nil)
