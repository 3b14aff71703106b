package wire

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustState(t *testing.T, id string, kind ValueKind, raw any) *WidgetState {
	t.Helper()
	s, err := NewWidgetState(id, kind, raw)
	require.NoError(t, err)
	return s
}

func TestNewWidgetState_Kinds(t *testing.T) {
	for _, tc := range []struct {
		kind ValueKind
		raw  any
		want any
	}{
		{KindTrigger, true, true},
		{KindBool, false, false},
		{KindDouble, 0.5, 0.5},
		{KindDouble, int64(2), float64(2)},
		{KindInt, 123, int64(123)},
		{KindInt, float64(7), int64(7)},
		{KindString, "howdy!", "howdy!"},
		{KindJSON, `{"a":1}`, `{"a":1}`},
		{KindDoubleArray, []any{1.5, int64(2)}, []float64{1.5, 2}},
		{KindIntArray, []int64{1, 2}, []int64{1, 2}},
		{KindStringArray, []any{"a", "b"}, []string{"a", "b"}},
		{KindStringArray, nil, []string{}},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			s := mustState(t, "w", tc.kind, tc.raw)
			assert.Equal(t, tc.kind, s.Kind())
			assert.Equal(t, tc.want, s.Raw())
			assert.NoError(t, s.Validate())
		})
	}
}

func TestNewWidgetState_Rejects(t *testing.T) {
	_, err := NewWidgetState("w", KindInt, 1.5)
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = NewWidgetState("w", KindBool, "yes")
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = NewWidgetState("w", KindStringArray, []any{"a", 1})
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = NewWidgetState("w", ValueKind("file_uploader_state_value"), nil)
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestWidgetState_Validate(t *testing.T) {
	empty := &WidgetState{ID: "w"}
	assert.Equal(t, KindNone, empty.Kind())
	assert.Error(t, empty.Validate())

	v, b := int64(1), true
	two := &WidgetState{ID: "w", IntValue: &v, BoolValue: &b}
	assert.Error(t, two.Validate())

	assert.Error(t, (&WidgetState{BoolValue: &b}).Validate())
}

func TestWidgetState_CloneIsDeep(t *testing.T) {
	s := mustState(t, "w", KindStringArray, []string{"a"})
	c := s.Clone()
	c.StringArrayValue.Data[0] = "b"
	assert.Equal(t, []string{"a"}, s.Raw())
}

func TestCodec_WidgetStates(t *testing.T) {
	in := &WidgetStates{Widgets: []*WidgetState{
		mustState(t, "a", KindInt, 5),
		mustState(t, "b", KindStringArray, []string{}),
		mustState(t, "c", KindTrigger, false),
	}}
	b, err := Marshal(in)
	require.NoError(t, err)

	out, err := UnmarshalWidgetStates(b)
	require.NoError(t, err)
	require.Len(t, out.Widgets, 3)
	assert.Equal(t, int64(5), out.Widgets[0].Raw())
	assert.Equal(t, KindStringArray, out.Widgets[1].Kind())
	assert.Equal(t, KindTrigger, out.Widgets[2].Kind())
}

func TestCodec_ForwardMsg(t *testing.T) {
	msg := NewDelta(&Element{Checkbox: &Checkbox{ID: "x", Label: "agree", Value: true, SetValue: true}})
	b, err := Marshal(msg)
	require.NoError(t, err)

	out, err := UnmarshalForwardMsg(b)
	require.NoError(t, err)
	assert.Equal(t, MsgDelta, out.Kind())
	assert.Equal(t, msg.Delta.Element.Checkbox, out.Delta.Element.Checkbox)
}

func TestCoalesceWidgetStates(t *testing.T) {
	older := &WidgetStates{Widgets: []*WidgetState{
		mustState(t, "old_set_trigger", KindTrigger, true),
		mustState(t, "old_unset_trigger", KindTrigger, false),
		mustState(t, "missing_in_new", KindInt, 123),
		mustState(t, "shape_changing_trigger", KindTrigger, true),
	}}
	newer := &WidgetStates{Widgets: []*WidgetState{
		mustState(t, "old_set_trigger", KindTrigger, false),
		mustState(t, "new_set_trigger", KindTrigger, true),
		mustState(t, "added_in_new", KindInt, 456),
		mustState(t, "shape_changing_trigger", KindInt, 3),
	}}

	got := map[string]any{}
	for _, s := range CoalesceWidgetStates(older, newer).Widgets {
		got[s.ID] = s.Raw()
	}

	assert.Equal(t, map[string]any{
		"old_set_trigger":        true,
		"new_set_trigger":        true,
		"added_in_new":           int64(456),
		"shape_changing_trigger": int64(3),
	}, got)
}

func TestCoalesceWidgetStates_KeepsNewerOrder(t *testing.T) {
	newer := &WidgetStates{Widgets: []*WidgetState{
		mustState(t, "b", KindInt, 1),
		mustState(t, "a", KindInt, 2),
		mustState(t, "b", KindInt, 3),
	}}
	out := CoalesceWidgetStates(nil, newer)
	require.Len(t, out.Widgets, 2)
	assert.Equal(t, "b", out.Widgets[0].ID)
	assert.Equal(t, int64(3), out.Widgets[0].Raw())
	assert.Equal(t, "a", out.Widgets[1].ID)
}
