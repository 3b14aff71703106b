package widgetstate

import (
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/joeycumines/rerun/internal/wire"
)

// Store maps widget ids to their entries, in insertion order, plus the
// metadata registered for each id. It is not safe for concurrent use; a
// session mutates it from one goroutine at a time.
type Store struct {
	states   *orderedmap.OrderedMap[string, *Entry]
	metadata map[string]*Metadata
	// touched records ids written from the wire since the last ResetTouched.
	touched map[string]struct{}
}

// Item pairs a widget id with its resolved value.
type Item struct {
	ID    string
	Value any
}

// New returns an empty store.
func New() *Store {
	return &Store{
		states:   orderedmap.New[string, *Entry](),
		metadata: make(map[string]*Metadata),
		touched:  make(map[string]struct{}),
	}
}

// SetFromWire stores w as a serialized entry, replacing any existing entry
// for w.ID, and marks the id as touched.
func (s *Store) SetFromWire(w *wire.WidgetState) {
	s.states.Set(w.ID, SerializedEntry(w))
	s.touched[w.ID] = struct{}{}
}

// SetFromValue stores v as a typed entry.
func (s *Store) SetFromValue(id string, v any) {
	s.states.Set(id, ValueEntry(v))
}

// SetMetadata registers or replaces the metadata for m.ID.
func (s *Store) SetMetadata(m *Metadata) {
	s.metadata[m.ID] = m
}

// Metadata returns the metadata registered for id.
func (s *Store) Metadata(id string) (*Metadata, bool) {
	m, ok := s.metadata[id]
	return m, ok
}

// Get returns the typed value for id, deserializing and caching it on the
// first read of a serialized entry. It fails with ErrNotFound if id has no
// entry and with ErrNoMetadata if the entry is serialized and the widget has
// not been declared. A failed read leaves the store unchanged.
func (s *Store) Get(id string) (any, error) {
	e, ok := s.states.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "widget %q", id)
	}
	if !e.IsSerialized() {
		return e.value, nil
	}
	m, ok := s.metadata[id]
	if !ok {
		return nil, errors.Wrapf(ErrNoMetadata, "widget %q", id)
	}
	v, err := e.resolve(m)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize widget %q", id)
	}
	return v, nil
}

// IsSerialized reports whether id has an entry that has not been read yet.
func (s *Store) IsSerialized(id string) bool {
	e, ok := s.states.Get(id)
	return ok && e.IsSerialized()
}

// Has reports whether id resolves to a value.
func (s *Store) Has(id string) bool {
	_, err := s.Get(id)
	return err == nil
}

// Len returns the number of visible entries. A serialized entry whose widget
// has not been declared is not visible.
func (s *Store) Len() int {
	return len(s.Keys())
}

// Keys returns the visible entry ids in insertion order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, s.states.Len())
	for p := s.states.Oldest(); p != nil; p = p.Next() {
		if s.visible(p.Key, p.Value) {
			keys = append(keys, p.Key)
		}
	}
	return keys
}

func (s *Store) visible(id string, e *Entry) bool {
	if !e.IsSerialized() {
		return true
	}
	_, ok := s.metadata[id]
	return ok
}

// ids returns every entry id in insertion order, visible or not.
func (s *Store) ids() []string {
	ids := make([]string, 0, s.states.Len())
	for p := s.states.Oldest(); p != nil; p = p.Next() {
		ids = append(ids, p.Key)
	}
	return ids
}

// Items resolves every visible entry, in insertion order.
func (s *Store) Items() ([]Item, error) {
	keys := s.Keys()
	items := make([]Item, 0, len(keys))
	for _, id := range keys {
		v, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{ID: id, Value: v})
	}
	return items, nil
}

// Values resolves every visible entry, in insertion order.
func (s *Store) Values() ([]any, error) {
	items, err := s.Items()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(items))
	for i, item := range items {
		values[i] = item.Value
	}
	return values, nil
}

// Delete removes the entry for id, keeping its metadata.
func (s *Store) Delete(id string) bool {
	_, ok := s.states.Delete(id)
	return ok
}

// CullNonexistent removes every entry and metadata whose id is not in active.
func (s *Store) CullNonexistent(active map[string]struct{}) {
	for _, id := range s.ids() {
		if _, ok := active[id]; !ok {
			s.states.Delete(id)
		}
	}
	for id := range s.metadata {
		if _, ok := active[id]; !ok {
			delete(s.metadata, id)
		}
	}
}

// GetSerialized returns the wire record for id. A serialized entry returns the
// record it was created from; a typed entry is encoded with the metadata's
// serializer. It returns (nil, nil) when id has no entry, or has a typed entry
// but no metadata.
func (s *Store) GetSerialized(id string) (*wire.WidgetState, error) {
	e, ok := s.states.Get(id)
	if !ok {
		return nil, nil
	}
	if e.wire != nil {
		return e.wire, nil
	}
	m, ok := s.metadata[id]
	if !ok {
		return nil, nil
	}
	w, err := m.serialize(e.value)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize widget %q", id)
	}
	return w, nil
}

// AsWireStates serializes every entry in insertion order, skipping typed
// entries that have no metadata.
func (s *Store) AsWireStates() ([]*wire.WidgetState, error) {
	out := make([]*wire.WidgetState, 0, s.states.Len())
	for _, id := range s.ids() {
		w, err := s.GetSerialized(id)
		if err != nil {
			return nil, err
		}
		if w != nil {
			out = append(out, w)
		}
	}
	return out, nil
}

// Touched returns the ids set from the wire since the last ResetTouched.
func (s *Store) Touched() map[string]struct{} {
	out := make(map[string]struct{}, len(s.touched))
	for id := range s.touched {
		out[id] = struct{}{}
	}
	return out
}

// ResetTouched forgets which ids were set from the wire.
func (s *Store) ResetTouched() {
	clear(s.touched)
}

// CallCallback invokes the callback registered for id, if any.
func (s *Store) CallCallback(id string) error {
	m, ok := s.metadata[id]
	if !ok {
		return errors.Wrapf(ErrNoMetadata, "widget %q", id)
	}
	if m.Callback == nil {
		return nil
	}
	return m.Callback(m.CallbackArgs, m.CallbackKwargs)
}
