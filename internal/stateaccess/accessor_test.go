package stateaccess

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/rerun/internal/runctx"
	"github.com/joeycumines/rerun/internal/sessionstate"
	"github.com/joeycumines/rerun/internal/widgetstate"
	"github.com/joeycumines/rerun/internal/wire"
)

const reservedKey = sessionstate.GeneratedWidgetKeyPrefix + "-some_key"

// bound registers a fresh session in its own registry and binds it to the
// test goroutine.
func bound(t *testing.T) (*Accessor, *sessionstate.SessionState) {
	t.Helper()
	reg := runctx.NewRegistry()
	c := runctx.New("s", nil, nil)
	reg.Add(c)
	unbind, err := reg.Bind("s")
	require.NoError(t, err)
	t.Cleanup(unbind)
	return New(reg), c.SessionState
}

func TestAccessor_ReservedKey(t *testing.T) {
	a, s := bound(t)
	require.NoError(t, s.Set("plain", 1))

	for name, op := range map[string]func() error{
		"get":     func() error { _, err := a.Get(reservedKey); return err },
		"has":     func() error { _, err := a.Has(reservedKey); return err },
		"set":     func() error { return a.Set(reservedKey, "foo") },
		"delete":  func() error { return a.Delete(reservedKey) },
		"attr":    func() error { _, err := a.Attr(reservedKey); return err },
		"setattr": func() error { return a.SetAttr(reservedKey, "foo") },
		"delattr": func() error { return a.DelAttr(reservedKey) },
	} {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrReservedKey))
			assert.Contains(t, err.Error(), "are reserved")
			assert.Equal(t, []string{"plain"}, s.Keys())
		})
	}
}

func TestAccessor_ReservedKeyWithoutSession(t *testing.T) {
	a := New(runctx.NewRegistry())
	err := a.Set(reservedKey, 1)
	assert.True(t, errors.Is(err, ErrReservedKey))
}

func TestAccessor_NoActiveSession(t *testing.T) {
	a := New(runctx.NewRegistry())
	_, err := a.Get("k")
	assert.True(t, errors.Is(err, runctx.ErrNoActiveSession))
	assert.True(t, errors.Is(a.Set("k", 1), runctx.ErrNoActiveSession))
	_, err = a.Keys()
	assert.True(t, errors.Is(err, runctx.ErrNoActiveSession))
}

func TestAccessor_ItemAndAttr(t *testing.T) {
	a, _ := bound(t)

	require.NoError(t, a.Set("count", 1))
	v, err := a.Get("count")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, a.SetAttr("name", "x"))
	v, err = a.Attr("name")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	ok, err := a.Has("name")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, a.DelAttr("name"))
	_, err = a.Attr("name")
	assert.True(t, errors.Is(err, ErrNoAttribute))
	_, err = a.Get("name")
	assert.True(t, errors.Is(err, sessionstate.ErrKeyNotFound))
	assert.True(t, errors.Is(a.DelAttr("name"), ErrNoAttribute))
	assert.True(t, errors.Is(a.Delete("name"), sessionstate.ErrKeyNotFound))
}

func TestAccessor_KeysHideGeneratedIDs(t *testing.T) {
	a, s := bound(t)
	require.NoError(t, s.OnScriptWillRerun(nil))
	_, err := s.RegisterWidget(&widgetstate.Metadata{
		ID:           sessionstate.GeneratedWidgetKeyPrefix + "-abc",
		Deserializer: func(raw any) (any, error) { return false, nil },
		ValueType:    wire.KindBool,
	})
	require.NoError(t, err)
	require.NoError(t, a.Set("user", "v"))

	keys, err := a.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, keys)

	n, err := a.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := a.ToMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "v"}, m)
}

func TestAccessor_ResolvesPerAccess(t *testing.T) {
	reg := runctx.NewRegistry()
	a := New(reg)
	first, second := runctx.New("one", nil, nil), runctx.New("two", nil, nil)
	reg.Add(first)
	reg.Add(second)

	unbind, err := reg.Bind("one")
	require.NoError(t, err)
	require.NoError(t, a.Set("k", "first"))
	unbind()

	unbind, err = reg.Bind("two")
	require.NoError(t, err)
	defer unbind()
	_, err = a.Get("k")
	assert.True(t, errors.Is(err, sessionstate.ErrKeyNotFound))

	v, err := first.SessionState.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}
