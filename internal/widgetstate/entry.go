package widgetstate

import "github.com/joeycumines/rerun/internal/wire"

// Entry is the state of one widget: either a typed value, or a wire record
// that has not been read yet. A serialized entry is deserialized at most
// once; afterwards it holds the typed value and keeps the original record
// so it can be sent back without re-encoding.
type Entry struct {
	wire     *wire.WidgetState
	value    any
	resolved bool
}

// ValueEntry returns an entry holding a typed value.
func ValueEntry(v any) *Entry {
	return &Entry{value: v, resolved: true}
}

// SerializedEntry returns an entry holding a wire record.
func SerializedEntry(w *wire.WidgetState) *Entry {
	return &Entry{wire: w}
}

// IsSerialized reports whether the entry still needs a deserializer.
func (e *Entry) IsSerialized() bool {
	return !e.resolved
}

func (e *Entry) resolve(m *Metadata) (any, error) {
	if e.resolved {
		return e.value, nil
	}
	v, err := m.deserialize(e.wire.Raw())
	if err != nil {
		return nil, err
	}
	e.value = v
	e.resolved = true
	return v, nil
}
