// Package wire defines the records exchanged with the browser: per-widget
// value records sent by the frontend and the forward messages produced by a
// script run.
package wire

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ValueKind names the populated value field of a WidgetState.
// The set is closed; the string form matches the field name on the wire.
type ValueKind string

const (
	KindNone        ValueKind = ""
	KindTrigger     ValueKind = "trigger_value"
	KindBool        ValueKind = "bool_value"
	KindDouble      ValueKind = "double_value"
	KindInt         ValueKind = "int_value"
	KindString      ValueKind = "string_value"
	KindDoubleArray ValueKind = "double_array_value"
	KindIntArray    ValueKind = "int_array_value"
	KindStringArray ValueKind = "string_array_value"
	KindJSON        ValueKind = "json_value"
)

// ErrInvalidValue is returned when a raw value cannot be stored in the
// requested value field.
var ErrInvalidValue = errors.New("invalid widget value")

// DoubleArray wraps a list so that an empty list is still a populated field.
type DoubleArray struct {
	Data []float64 `msgpack:"data" json:"data" yaml:"data"`
}

type IntArray struct {
	Data []int64 `msgpack:"data" json:"data" yaml:"data"`
}

type StringArray struct {
	Data []string `msgpack:"data" json:"data" yaml:"data"`
}

// WidgetState is the value of one widget, tagged with its id. Exactly one of
// the value fields is populated on a well-formed record.
type WidgetState struct {
	ID               string       `msgpack:"id" json:"id" yaml:"id"`
	TriggerValue     *bool        `msgpack:"trigger_value,omitempty" json:"trigger_value,omitempty" yaml:"trigger_value,omitempty"`
	BoolValue        *bool        `msgpack:"bool_value,omitempty" json:"bool_value,omitempty" yaml:"bool_value,omitempty"`
	DoubleValue      *float64     `msgpack:"double_value,omitempty" json:"double_value,omitempty" yaml:"double_value,omitempty"`
	IntValue         *int64       `msgpack:"int_value,omitempty" json:"int_value,omitempty" yaml:"int_value,omitempty"`
	StringValue      *string      `msgpack:"string_value,omitempty" json:"string_value,omitempty" yaml:"string_value,omitempty"`
	DoubleArrayValue *DoubleArray `msgpack:"double_array_value,omitempty" json:"double_array_value,omitempty" yaml:"double_array_value,omitempty"`
	IntArrayValue    *IntArray    `msgpack:"int_array_value,omitempty" json:"int_array_value,omitempty" yaml:"int_array_value,omitempty"`
	StringArrayValue *StringArray `msgpack:"string_array_value,omitempty" json:"string_array_value,omitempty" yaml:"string_array_value,omitempty"`
	JSONValue        *string      `msgpack:"json_value,omitempty" json:"json_value,omitempty" yaml:"json_value,omitempty"`
}

// WidgetStates is an ordered sequence of widget values. A full snapshot
// covers every widget; an incremental update only the changed ones.
type WidgetStates struct {
	Widgets []*WidgetState `msgpack:"widgets" json:"widgets" yaml:"widgets"`
}

// Kind reports which value field is populated, or KindNone.
func (s *WidgetState) Kind() ValueKind {
	switch {
	case s == nil:
		return KindNone
	case s.TriggerValue != nil:
		return KindTrigger
	case s.BoolValue != nil:
		return KindBool
	case s.DoubleValue != nil:
		return KindDouble
	case s.IntValue != nil:
		return KindInt
	case s.StringValue != nil:
		return KindString
	case s.DoubleArrayValue != nil:
		return KindDoubleArray
	case s.IntArrayValue != nil:
		return KindIntArray
	case s.StringArrayValue != nil:
		return KindStringArray
	case s.JSONValue != nil:
		return KindJSON
	}
	return KindNone
}

func (s *WidgetState) populated() int {
	n := 0
	for _, set := range []bool{
		s.TriggerValue != nil,
		s.BoolValue != nil,
		s.DoubleValue != nil,
		s.IntValue != nil,
		s.StringValue != nil,
		s.DoubleArrayValue != nil,
		s.IntArrayValue != nil,
		s.StringArrayValue != nil,
		s.JSONValue != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Validate checks the record carries an id and exactly one value field.
func (s *WidgetState) Validate() error {
	if s == nil {
		return errors.Wrap(ErrInvalidValue, "nil widget state")
	}
	if s.ID == "" {
		return errors.Wrap(ErrInvalidValue, "widget state has no id")
	}
	if n := s.populated(); n != 1 {
		return errors.Wrapf(ErrInvalidValue, "widget %q has %d value fields set, want 1", s.ID, n)
	}
	return nil
}

// Raw returns the populated field's value: bool, float64, int64, string,
// []float64, []int64 or []string. A JSON field is returned undecoded.
// Raw returns nil when no field is populated.
func (s *WidgetState) Raw() any {
	switch s.Kind() {
	case KindTrigger:
		return *s.TriggerValue
	case KindBool:
		return *s.BoolValue
	case KindDouble:
		return *s.DoubleValue
	case KindInt:
		return *s.IntValue
	case KindString:
		return *s.StringValue
	case KindDoubleArray:
		return s.DoubleArrayValue.Data
	case KindIntArray:
		return s.IntArrayValue.Data
	case KindStringArray:
		return s.StringArrayValue.Data
	case KindJSON:
		return *s.JSONValue
	}
	return nil
}

// Clone returns a deep copy.
func (s *WidgetState) Clone() *WidgetState {
	if s == nil {
		return nil
	}
	out, err := NewWidgetState(s.ID, s.Kind(), s.Raw())
	if err != nil {
		// a well-formed record always round-trips through its own kind
		c := *s
		return &c
	}
	return out
}

// NewWidgetState builds a record for id with raw stored in the field named by
// kind. Numeric values are converted between Go number types when lossless.
func NewWidgetState(id string, kind ValueKind, raw any) (*WidgetState, error) {
	s := &WidgetState{ID: id}
	var err error
	switch kind {
	case KindTrigger:
		var v bool
		if v, err = toBool(raw); err == nil {
			s.TriggerValue = &v
		}
	case KindBool:
		var v bool
		if v, err = toBool(raw); err == nil {
			s.BoolValue = &v
		}
	case KindDouble:
		var v float64
		if v, err = toFloat(raw); err == nil {
			s.DoubleValue = &v
		}
	case KindInt:
		var v int64
		if v, err = toInt(raw); err == nil {
			s.IntValue = &v
		}
	case KindString:
		v, ok := raw.(string)
		if !ok {
			err = typeError(raw, "string")
		} else {
			s.StringValue = &v
		}
	case KindJSON:
		v, ok := raw.(string)
		if !ok {
			err = typeError(raw, "json string")
		} else {
			s.JSONValue = &v
		}
	case KindDoubleArray:
		var v []float64
		if v, err = toSlice(raw, toFloat); err == nil {
			s.DoubleArrayValue = &DoubleArray{Data: v}
		}
	case KindIntArray:
		var v []int64
		if v, err = toSlice(raw, toInt); err == nil {
			s.IntArrayValue = &IntArray{Data: v}
		}
	case KindStringArray:
		var v []string
		if v, err = toSlice(raw, func(x any) (string, error) {
			str, ok := x.(string)
			if !ok {
				return "", typeError(x, "string")
			}
			return str, nil
		}); err == nil {
			s.StringArrayValue = &StringArray{Data: v}
		}
	default:
		return nil, errors.Wrapf(ErrInvalidValue, "unknown value kind %q", kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "widget %q %s", id, kind)
	}
	return s, nil
}

func typeError(raw any, want string) error {
	return errors.Wrapf(ErrInvalidValue, "cannot use %T as %s", raw, want)
}

func toBool(raw any) (bool, error) {
	v, ok := raw.(bool)
	if !ok {
		return false, typeError(raw, "bool")
	}
	return v, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	}
	return 0, typeError(raw, "double")
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, typeError(raw, "int")
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, errors.Wrapf(ErrInvalidValue, "%v is not an integer", v)
		}
		return int64(v), nil
	}
	return 0, typeError(raw, "int")
}

func toSlice[T any](raw any, conv func(any) (T, error)) ([]T, error) {
	switch v := raw.(type) {
	case []T:
		out := make([]T, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]T, 0, len(v))
		for i, x := range v {
			c, err := conv(x)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			out = append(out, c)
		}
		return out, nil
	case nil:
		return []T{}, nil
	}
	return nil, typeError(raw, fmt.Sprintf("%T", []T(nil)))
}
