// Package sessionstate reconciles widget values across script reruns.
//
// Three layers are merged on every read, highest priority first:
//
//   - values the script assigned during the current run,
//   - widget values delivered by the frontend for the current run,
//   - values in effect when the previous run ended.
//
// A SessionState is owned by one session and is not safe for concurrent use:
// a run, including the callbacks it triggers, executes on one goroutine.
package sessionstate

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/joeycumines/rerun/internal/widgetstate"
	"github.com/joeycumines/rerun/internal/wire"
)

// GeneratedWidgetKeyPrefix prefixes ids generated for widgets declared
// without a user key. Scripts may not use keys in this namespace.
const GeneratedWidgetKeyPrefix = "$$GENERATED_WIDGET_KEY"

// IsGeneratedKey reports whether key lives in the generated-id namespace.
func IsGeneratedKey(key string) bool {
	return strings.HasPrefix(key, GeneratedWidgetKeyPrefix)
}

// SessionState is the state of one browser session.
type SessionState struct {
	// oldState holds the values in effect at the end of the previous run.
	oldState *orderedmap.OrderedMap[string, any]
	// newSessionState holds values the script assigned during this run.
	newSessionState *orderedmap.OrderedMap[string, any]
	// widgets holds frontend-delivered and default widget values for this
	// run, plus the metadata of every live widget.
	widgets *widgetstate.Store

	widgetIDsThisRun map[string]struct{}
	pendingCallbacks []string
}

// RegisterResult is the outcome of registering a widget for the current run.
type RegisterResult struct {
	// Value is the widget's effective value for this run.
	Value any
	// SetFrontendValue is true when Value came from the script rather than
	// the frontend, so the frontend must be told about it.
	SetFrontendValue bool
}

// New returns an empty session state.
func New() *SessionState {
	return &SessionState{
		oldState:         orderedmap.New[string, any](),
		newSessionState:  orderedmap.New[string, any](),
		widgets:          widgetstate.New(),
		widgetIDsThisRun: make(map[string]struct{}),
	}
}

// Widgets exposes the widget store.
func (s *SessionState) Widgets() *widgetstate.Store {
	return s.widgets
}

// Get returns the merged value for key.
func (s *SessionState) Get(key string) (any, error) {
	if v, ok := s.newSessionState.Get(key); ok {
		return v, nil
	}
	v, err := s.widgets.Get(key)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, widgetstate.ErrNotFound), errors.Is(err, widgetstate.ErrNoMetadata):
		// an undeclared serialized value is invisible to the script
	default:
		return nil, err
	}
	if v, ok := s.oldState.Get(key); ok {
		return v, nil
	}
	return nil, errors.Wrapf(ErrKeyNotFound, "%q", key)
}

// Has reports whether key resolves to a value.
func (s *SessionState) Has(key string) bool {
	_, err := s.Get(key)
	return err == nil
}

// Set assigns key for the current run. It fails if a widget with that id was
// already registered in this run.
func (s *SessionState) Set(key string, value any) error {
	if _, ok := s.widgetIDsThisRun[key]; ok {
		return errors.Wrapf(ErrWidgetValueAfterCreation, "%q", key)
	}
	s.newSessionState.Set(key, value)
	return nil
}

// Delete removes key from every layer.
func (s *SessionState) Delete(key string) error {
	_, inNew := s.newSessionState.Delete(key)
	inWidgets := s.widgets.Delete(key)
	_, inOld := s.oldState.Delete(key)
	if !inNew && !inWidgets && !inOld {
		return errors.Wrapf(ErrKeyNotFound, "%q", key)
	}
	return nil
}

// Keys returns the merged keys: carried-over keys first, then keys first seen
// from widgets, then keys first assigned by the script.
func (s *SessionState) Keys() []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for p := s.oldState.Oldest(); p != nil; p = p.Next() {
		add(p.Key)
	}
	for _, k := range s.widgets.Keys() {
		if s.widgets.Has(k) {
			add(k)
		}
	}
	for p := s.newSessionState.Oldest(); p != nil; p = p.Next() {
		add(p.Key)
	}
	return keys
}

// Len returns the number of merged keys.
func (s *SessionState) Len() int {
	return len(s.Keys())
}

// FilteredState returns the merged state without generated widget ids:
// script keys and keyed widget values.
func (s *SessionState) FilteredState() map[string]any {
	out := make(map[string]any)
	for _, k := range s.Keys() {
		if IsGeneratedKey(k) {
			continue
		}
		if v, err := s.Get(k); err == nil {
			out[k] = v
		}
	}
	return out
}

// IsNewStateValue reports whether the script assigned key during this run.
func (s *SessionState) IsNewStateValue(key string) bool {
	_, ok := s.newSessionState.Get(key)
	return ok
}

// WidgetIDsThisRun returns the ids registered in the current run.
func (s *SessionState) WidgetIDsThisRun() map[string]struct{} {
	out := make(map[string]struct{}, len(s.widgetIDsThisRun))
	for id := range s.widgetIDsThisRun {
		out[id] = struct{}{}
	}
	return out
}

// RegisterWidget records m for the current run and resolves the widget's
// effective value: script-set, then frontend, then carried over, then the
// deserializer's default.
func (s *SessionState) RegisterWidget(m *widgetstate.Metadata) (RegisterResult, error) {
	id := m.ID
	if _, ok := s.widgetIDsThisRun[id]; ok {
		return RegisterResult{}, errors.Wrapf(ErrDuplicateWidgetID, "%q", id)
	}
	s.widgetIDsThisRun[id] = struct{}{}
	s.widgets.SetMetadata(m)

	value, err := s.Get(id)
	if errors.Is(err, ErrKeyNotFound) {
		if value, err = defaultValue(m); err != nil {
			return RegisterResult{}, err
		}
	} else if err != nil {
		return RegisterResult{}, err
	}

	// the store must hold the effective value so the wire snapshot matches
	// what the script sees; an untouched frontend value is already there
	if !s.frontendWins(id) {
		s.widgets.SetFromValue(id, value)
	}

	return RegisterResult{
		Value:            value,
		SetFrontendValue: s.IsNewStateValue(id),
	}, nil
}

// frontendWins reports whether the merged view of id resolves to the widget
// store's value.
func (s *SessionState) frontendWins(id string) bool {
	if s.IsNewStateValue(id) {
		return false
	}
	_, err := s.widgets.Get(id)
	return err == nil
}

func defaultValue(m *widgetstate.Metadata) (any, error) {
	if m.Deserializer == nil {
		return nil, nil
	}
	v, err := m.Deserializer(nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compute default for widget %q", m.ID)
	}
	return v, nil
}

// AsWireStates serializes the current widget values.
func (s *SessionState) AsWireStates() ([]*wire.WidgetState, error) {
	return s.widgets.AsWireStates()
}

// OnScriptWillRerun prepares the state for a new run: triggers from the
// previous run are reset, the previous run's values become the carried-over
// snapshot, the frontend's values are applied, and callbacks of widgets whose
// value changed are run.
func (s *SessionState) OnScriptWillRerun(states *wire.WidgetStates) error {
	s.resetTriggers()
	s.compact()
	s.widgetIDsThisRun = make(map[string]struct{})
	s.widgets.ResetTouched()
	if states != nil {
		for _, w := range states.Widgets {
			s.widgets.SetFromWire(w)
		}
	}
	s.queueChangedCallbacks()
	return s.CallCallbacks()
}

// OnScriptFinished culls every widget not registered in the run that just
// ended, including its carried-over value. Keys the script assigned directly
// are kept.
func (s *SessionState) OnScriptFinished() {
	active := s.widgetIDsThisRun
	var stale []string
	for p := s.oldState.Oldest(); p != nil; p = p.Next() {
		if _, ok := active[p.Key]; ok {
			continue
		}
		if _, isWidget := s.widgets.Metadata(p.Key); isWidget || IsGeneratedKey(p.Key) {
			stale = append(stale, p.Key)
		}
	}
	for _, k := range stale {
		s.oldState.Delete(k)
	}
	s.widgets.CullNonexistent(active)
	if len(stale) > 0 {
		log.Debug().Strs("widget_ids", stale).Msg("Culled stale widgets")
	}
}

// PendingCallbacks returns the widget ids whose callbacks are queued.
func (s *SessionState) PendingCallbacks() []string {
	return append([]string(nil), s.pendingCallbacks...)
}

// CallCallbacks drains the callback queue in order. A failing callback does
// not stop the ones queued after it; every failure is returned, joined.
func (s *SessionState) CallCallbacks() error {
	pending := s.pendingCallbacks
	s.pendingCallbacks = nil
	var errs []error
	for _, id := range pending {
		log.Trace().Str("widget_id", id).Msg("Calling widget callback")
		if err := s.widgets.CallCallback(id); err != nil {
			if errors.Is(err, widgetstate.ErrNoMetadata) {
				continue
			}
			errs = append(errs, errors.Wrapf(err, "callback for widget %q failed", id))
		}
	}
	return stderrors.Join(errs...)
}

func (s *SessionState) queueChangedCallbacks() {
	touched := s.widgets.Touched()
	for _, id := range s.widgets.Keys() {
		if _, ok := touched[id]; !ok {
			continue
		}
		if !s.widgetChanged(id) {
			continue
		}
		if m, ok := s.widgets.Metadata(id); !ok || m.Callback == nil {
			continue
		}
		log.Debug().Str("widget_id", id).Msg("Widget changed, callback scheduled")
		s.pendingCallbacks = append(s.pendingCallbacks, id)
	}
}

// widgetChanged compares the frontend's value for id with the value in
// effect at the end of the previous run. Values are compared structurally.
func (s *SessionState) widgetChanged(id string) bool {
	newValue, err := s.widgets.Get(id)
	if err != nil {
		return false
	}
	oldValue, ok := s.oldState.Get(id)
	if !ok {
		return newValue != nil
	}
	return !reflect.DeepEqual(newValue, oldValue)
}

// compact folds this run's values into the carried-over snapshot, in
// priority order, and clears the per-run layers. Serialized widget values
// that were never declared stay in the widget store.
func (s *SessionState) compact() {
	for _, id := range s.widgets.Keys() {
		v, err := s.widgets.Get(id)
		if err != nil {
			continue
		}
		s.oldState.Set(id, v)
		s.widgets.Delete(id)
	}
	for p := s.newSessionState.Oldest(); p != nil; p = p.Next() {
		s.oldState.Set(p.Key, p.Value)
	}
	s.newSessionState = orderedmap.New[string, any]()
}

// resetTriggers sets every trigger value back to false so that a button
// press is seen by exactly one run.
func (s *SessionState) resetTriggers() {
	for _, id := range s.widgets.Keys() {
		if m, ok := s.widgets.Metadata(id); ok && m.ValueType == wire.KindTrigger {
			s.widgets.SetFromValue(id, false)
		}
	}
	for p := s.oldState.Oldest(); p != nil; p = p.Next() {
		if m, ok := s.widgets.Metadata(p.Key); ok && m.ValueType == wire.KindTrigger {
			p.Value = false
		}
	}
}
