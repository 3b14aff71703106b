package wire

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes a wire record with the binary codec.
func Marshal(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %T", v)
	}
	return b, nil
}

// UnmarshalForwardMsg decodes a ForwardMsg produced by Marshal.
func UnmarshalForwardMsg(b []byte) (*ForwardMsg, error) {
	var msg ForwardMsg
	if err := msgpack.Unmarshal(b, &msg); err != nil {
		return nil, errors.Wrap(err, "failed to decode forward message")
	}
	return &msg, nil
}

// UnmarshalWidgetStates decodes a WidgetStates produced by Marshal and
// validates every record.
func UnmarshalWidgetStates(b []byte) (*WidgetStates, error) {
	var states WidgetStates
	if err := msgpack.Unmarshal(b, &states); err != nil {
		return nil, errors.Wrap(err, "failed to decode widget states")
	}
	for _, s := range states.Widgets {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return &states, nil
}
