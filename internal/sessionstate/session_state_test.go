package sessionstate

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/rerun/internal/widgetstate"
	"github.com/joeycumines/rerun/internal/wire"
)

func intMetadata(id string, def int64, cb widgetstate.Callback) *widgetstate.Metadata {
	return &widgetstate.Metadata{
		ID: id,
		Deserializer: func(raw any) (any, error) {
			if raw == nil {
				return def, nil
			}
			return raw, nil
		},
		Serializer: widgetstate.Identity,
		ValueType:  wire.KindInt,
		Callback:   cb,
	}
}

func triggerMetadata(id string, cb widgetstate.Callback) *widgetstate.Metadata {
	return &widgetstate.Metadata{
		ID: id,
		Deserializer: func(raw any) (any, error) {
			if raw == nil {
				return false, nil
			}
			return raw, nil
		},
		Serializer: widgetstate.Identity,
		ValueType:  wire.KindTrigger,
		Callback:   cb,
	}
}

func intStates(t *testing.T, values map[string]int64) *wire.WidgetStates {
	t.Helper()
	states := &wire.WidgetStates{}
	for id, v := range values {
		w, err := wire.NewWidgetState(id, wire.KindInt, v)
		require.NoError(t, err)
		states.Widgets = append(states.Widgets, w)
	}
	return states
}

func TestSessionState_RegisterDefault(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(nil))

	res, err := s.RegisterWidget(intMetadata("w1", 0, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Value)
	assert.False(t, res.SetFrontendValue)

	states, err := s.AsWireStates()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "w1", states[0].ID)
	assert.Equal(t, int64(0), *states[0].IntValue)
}

func TestSessionState_ThreeRuns(t *testing.T) {
	s := New()
	var calls int
	cb := func(args []any, kwargs map[string]any) error {
		calls++
		return nil
	}

	// run 1: default
	require.NoError(t, s.OnScriptWillRerun(nil))
	res, err := s.RegisterWidget(intMetadata("w1", 0, cb))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Value)
	assert.False(t, res.SetFrontendValue)
	s.OnScriptFinished()

	// run 2: the frontend reports 5, the callback fires before the script
	require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 5})))
	assert.Equal(t, 1, calls)
	res, err = s.RegisterWidget(intMetadata("w1", 0, cb))
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Value)
	assert.False(t, res.SetFrontendValue)
	s.OnScriptFinished()

	// run 3: the script assigns 9 before declaring the widget
	require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 5})))
	assert.Equal(t, 1, calls, "unchanged value must not fire the callback")
	require.NoError(t, s.Set("w1", int64(9)))
	res, err = s.RegisterWidget(intMetadata("w1", 0, cb))
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Value)
	assert.True(t, res.SetFrontendValue)
	s.OnScriptFinished()
}

func TestSessionState_WireSnapshotFollowsEffectiveValues(t *testing.T) {
	snapshot := func(t *testing.T, s *SessionState) map[string]int64 {
		t.Helper()
		states, err := s.AsWireStates()
		require.NoError(t, err)
		out := make(map[string]int64, len(states))
		for _, w := range states {
			require.NotNil(t, w.IntValue, w.ID)
			out[w.ID] = *w.IntValue
		}
		return out
	}

	t.Run("script assignment beats the frontend", func(t *testing.T) {
		s := New()
		require.NoError(t, s.OnScriptWillRerun(nil))
		_, err := s.RegisterWidget(intMetadata("w1", 0, nil))
		require.NoError(t, err)
		s.OnScriptFinished()

		require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 5})))
		require.NoError(t, s.Set("w1", int64(9)))
		res, err := s.RegisterWidget(intMetadata("w1", 0, nil))
		require.NoError(t, err)
		assert.Equal(t, int64(9), res.Value)
		assert.Equal(t, map[string]int64{"w1": 9}, snapshot(t, s))
		s.OnScriptFinished()
		assert.Equal(t, map[string]int64{"w1": 9}, snapshot(t, s))
	})

	t.Run("carried over value is reported", func(t *testing.T) {
		s := New()
		require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 3})))
		_, err := s.RegisterWidget(intMetadata("w1", 0, nil))
		require.NoError(t, err)
		s.OnScriptFinished()

		require.NoError(t, s.OnScriptWillRerun(nil))
		res, err := s.RegisterWidget(intMetadata("w1", 0, nil))
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Value)
		s.OnScriptFinished()
		assert.Equal(t, map[string]int64{"w1": 3}, snapshot(t, s))
	})

	t.Run("frontend value is kept as sent", func(t *testing.T) {
		s := New()
		require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 4})))
		_, err := s.RegisterWidget(intMetadata("w1", 0, nil))
		require.NoError(t, err)
		s.OnScriptFinished()
		assert.Equal(t, map[string]int64{"w1": 4}, snapshot(t, s))
	})
}

func TestSessionState_CarriedOverValue(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 3})))
	_, err := s.RegisterWidget(intMetadata("w1", 0, nil))
	require.NoError(t, err)
	s.OnScriptFinished()

	// the frontend sends nothing; the previous value wins over the default
	require.NoError(t, s.OnScriptWillRerun(nil))
	res, err := s.RegisterWidget(intMetadata("w1", 0, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Value)
}

func TestSessionState_Precedence(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(nil))
	require.NoError(t, s.Set("k", "old"))
	s.OnScriptFinished()

	require.NoError(t, s.OnScriptWillRerun(nil))
	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "old", v)
	assert.False(t, s.IsNewStateValue("k"))

	s.Widgets().SetFromValue("k", "widget")
	v, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "widget", v)

	require.NoError(t, s.Set("k", "new"))
	v, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
	assert.True(t, s.IsNewStateValue("k"))
}

func TestSessionState_UndeclaredSerializedIsInvisible(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 5})))
	_, err := s.Get("w1")
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	assert.False(t, s.Has("w1"))
	assert.Empty(t, s.Keys())
}

func TestSessionState_DuplicateWidgetID(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(nil))
	_, err := s.RegisterWidget(intMetadata("w1", 0, nil))
	require.NoError(t, err)
	_, err = s.RegisterWidget(intMetadata("w1", 0, nil))
	assert.True(t, errors.Is(err, ErrDuplicateWidgetID))

	// a new run starts a new id set
	s.OnScriptFinished()
	require.NoError(t, s.OnScriptWillRerun(nil))
	_, err = s.RegisterWidget(intMetadata("w1", 0, nil))
	assert.NoError(t, err)
}

func TestSessionState_SetAfterCreation(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(nil))
	_, err := s.RegisterWidget(intMetadata("w1", 0, nil))
	require.NoError(t, err)
	err = s.Set("w1", int64(1))
	assert.True(t, errors.Is(err, ErrWidgetValueAfterCreation))
	assert.NoError(t, s.Set("other", 1))
}

func TestSessionState_Delete(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(nil))
	require.NoError(t, s.Set("a", 1))
	s.OnScriptFinished()
	require.NoError(t, s.OnScriptWillRerun(nil))
	require.NoError(t, s.Set("a", 2))

	require.NoError(t, s.Delete("a"))
	assert.False(t, s.Has("a"))
	assert.True(t, errors.Is(s.Delete("a"), ErrKeyNotFound))
}

func TestSessionState_KeysAndFilteredState(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(nil))
	require.NoError(t, s.Set("user", "x"))
	_, err := s.RegisterWidget(intMetadata(GeneratedWidgetKeyPrefix+"-abc", 1, nil))
	require.NoError(t, err)
	_, err = s.RegisterWidget(intMetadata("keyed", 2, nil))
	require.NoError(t, err)

	assert.Equal(t, []string{GeneratedWidgetKeyPrefix + "-abc", "keyed", "user"}, s.Keys())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, map[string]any{"user": "x", "keyed": int64(2)}, s.FilteredState())
}

func TestSessionState_CallbackThenCull(t *testing.T) {
	s := New()
	var calls int
	cb := func(args []any, kwargs map[string]any) error {
		calls++
		return nil
	}

	require.NoError(t, s.OnScriptWillRerun(nil))
	_, err := s.RegisterWidget(intMetadata("w1", 0, cb))
	require.NoError(t, err)
	s.OnScriptFinished()

	// w1 changes but the script no longer declares it: the callback still
	// runs with the previous run's metadata, then the widget is culled
	require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 7})))
	assert.Equal(t, 1, calls)
	s.OnScriptFinished()

	assert.False(t, s.Has("w1"))
	_, ok := s.Widgets().Metadata("w1")
	assert.False(t, ok)
}

func TestSessionState_CullKeepsScriptKeys(t *testing.T) {
	s := New()
	require.NoError(t, s.OnScriptWillRerun(nil))
	require.NoError(t, s.Set("plain", 1))
	_, err := s.RegisterWidget(intMetadata(GeneratedWidgetKeyPrefix+"-x", 0, nil))
	require.NoError(t, err)
	s.OnScriptFinished()

	require.NoError(t, s.OnScriptWillRerun(nil))
	s.OnScriptFinished()

	assert.True(t, s.Has("plain"))
	assert.False(t, s.Has(GeneratedWidgetKeyPrefix+"-x"))
}

func TestSessionState_CallbackArgs(t *testing.T) {
	s := New()
	var gotArgs []any
	var gotKwargs map[string]any
	m := intMetadata("w1", 0, func(args []any, kwargs map[string]any) error {
		gotArgs, gotKwargs = args, kwargs
		return nil
	})
	m.CallbackArgs = []any{"a", 1}
	m.CallbackKwargs = map[string]any{"k": true}

	require.NoError(t, s.OnScriptWillRerun(nil))
	_, err := s.RegisterWidget(m)
	require.NoError(t, err)
	s.OnScriptFinished()

	require.NoError(t, s.OnScriptWillRerun(intStates(t, map[string]int64{"w1": 1})))
	assert.Equal(t, []any{"a", 1}, gotArgs)
	assert.Equal(t, map[string]any{"k": true}, gotKwargs)
}

func TestSessionState_CallbackError(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	bang := errors.New("bang")
	var second int
	require.NoError(t, s.OnScriptWillRerun(nil))
	_, err := s.RegisterWidget(intMetadata("a", 0, func([]any, map[string]any) error { return boom }))
	require.NoError(t, err)
	_, err = s.RegisterWidget(intMetadata("b", 0, func([]any, map[string]any) error { second++; return nil }))
	require.NoError(t, err)
	_, err = s.RegisterWidget(intMetadata("c", 0, func([]any, map[string]any) error { return bang }))
	require.NoError(t, err)
	s.OnScriptFinished()

	states := &wire.WidgetStates{}
	for _, id := range []string{"a", "b", "c"} {
		w, err := wire.NewWidgetState(id, wire.KindInt, int64(1))
		require.NoError(t, err)
		states.Widgets = append(states.Widgets, w)
	}
	err = s.OnScriptWillRerun(states)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errors.Is(err, bang))
	assert.Contains(t, err.Error(), `callback for widget "a" failed`)
	assert.Contains(t, err.Error(), `callback for widget "c" failed`)
	assert.Equal(t, 1, second, "callbacks after a failure still run")
	assert.Empty(t, s.PendingCallbacks())
}

func TestSessionState_TriggerResets(t *testing.T) {
	s := New()
	var clicks int
	cb := func([]any, map[string]any) error { clicks++; return nil }

	require.NoError(t, s.OnScriptWillRerun(nil))
	res, err := s.RegisterWidget(triggerMetadata("btn", cb))
	require.NoError(t, err)
	assert.Equal(t, false, res.Value)
	s.OnScriptFinished()

	press, err := wire.NewWidgetState("btn", wire.KindTrigger, true)
	require.NoError(t, err)
	require.NoError(t, s.OnScriptWillRerun(&wire.WidgetStates{Widgets: []*wire.WidgetState{press}}))
	assert.Equal(t, 1, clicks)
	res, err = s.RegisterWidget(triggerMetadata("btn", cb))
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
	s.OnScriptFinished()

	// the next run sees the press released even though the frontend is silent
	require.NoError(t, s.OnScriptWillRerun(nil))
	res, err = s.RegisterWidget(triggerMetadata("btn", cb))
	require.NoError(t, err)
	assert.Equal(t, false, res.Value)
	assert.Equal(t, 1, clicks)
}
