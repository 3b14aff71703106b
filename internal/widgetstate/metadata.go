// Package widgetstate holds the per-widget values of one session, either as
// typed values or as wire records still waiting for their deserializer.
package widgetstate

import (
	"github.com/joeycumines/rerun/internal/wire"
)

// Deserializer converts a raw wire value (see wire.WidgetState.Raw) into the
// value a widget constructor returns. A nil raw value asks for the widget's
// default.
type Deserializer func(raw any) (any, error)

// Serializer converts a typed value back into a raw wire value for the
// metadata's ValueType.
type Serializer func(value any) (any, error)

// Callback is invoked when a widget's value changes between runs.
type Callback func(args []any, kwargs map[string]any) error

// Identity passes values through unchanged in either direction.
func Identity(v any) (any, error) { return v, nil }

// Metadata is the (de)serialization contract and callback binding of one
// widget instance. It is replaced, never merged, each time the widget is
// declared.
type Metadata struct {
	ID           string
	Deserializer Deserializer
	Serializer   Serializer
	ValueType    wire.ValueKind
	HasKey       bool

	Callback       Callback
	CallbackArgs   []any
	CallbackKwargs map[string]any
}

func (m *Metadata) deserialize(raw any) (any, error) {
	if m.Deserializer == nil {
		return raw, nil
	}
	return m.Deserializer(raw)
}

func (m *Metadata) serialize(v any) (*wire.WidgetState, error) {
	raw := v
	if m.Serializer != nil {
		var err error
		if raw, err = m.Serializer(v); err != nil {
			return nil, err
		}
	}
	return wire.NewWidgetState(m.ID, m.ValueType, raw)
}
