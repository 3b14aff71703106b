package runctx

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/rerun/internal/wire"
)

type recorder struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *recorder) sink() Sink {
	return SinkFunc(func(env Envelope) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.envs = append(r.envs, env)
		return nil
	})
}

func (r *recorder) kinds() []wire.MsgKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.MsgKind, len(r.envs))
	for i, env := range r.envs {
		out[i] = env.Msg.Kind()
	}
	return out
}

func pageConfig() *wire.ForwardMsg {
	return &wire.ForwardMsg{PageConfigChanged: &wire.PageConfig{Title: "t"}}
}

func content() *wire.ForwardMsg {
	return wire.NewDelta(&wire.Element{Markdown: &wire.Markdown{Body: "hi"}})
}

func TestRunContext_PageConfigGate(t *testing.T) {
	t.Run("page config then content", func(t *testing.T) {
		rec := &recorder{}
		c := New("s", nil, rec.sink())
		require.NoError(t, c.Enqueue(pageConfig()))
		require.NoError(t, c.Enqueue(content()))
		require.NoError(t, c.Enqueue(content()))
		assert.Equal(t, []wire.MsgKind{wire.MsgPageConfigChanged, wire.MsgDelta, wire.MsgDelta}, rec.kinds())
	})

	t.Run("page config twice", func(t *testing.T) {
		rec := &recorder{}
		c := New("s", nil, rec.sink())
		require.NoError(t, c.Enqueue(pageConfig()))
		err := c.Enqueue(pageConfig())
		assert.True(t, errors.Is(err, ErrPageConfigAlreadySet))
		assert.Len(t, rec.kinds(), 1)
	})

	t.Run("page config after content", func(t *testing.T) {
		rec := &recorder{}
		c := New("s", nil, rec.sink())
		require.NoError(t, c.Enqueue(content()))
		err := c.Enqueue(pageConfig())
		assert.True(t, errors.Is(err, ErrPageConfigTooLate))
		assert.Equal(t, []wire.MsgKind{wire.MsgDelta}, rec.kinds())
	})

	t.Run("reset reopens the window", func(t *testing.T) {
		c := New("s", nil, nil)
		require.NoError(t, c.Enqueue(pageConfig()))
		assert.True(t, c.PageConfigAlreadySet())
		c.Reset()
		assert.False(t, c.PageConfigAlreadySet())
		assert.NoError(t, c.Enqueue(pageConfig()))
	})

	t.Run("reset after content", func(t *testing.T) {
		c := New("s", nil, nil)
		require.NoError(t, c.Enqueue(content()))
		c.Reset()
		assert.NoError(t, c.Enqueue(pageConfig()))
	})
}

func TestRunContext_SequenceAndSession(t *testing.T) {
	rec := &recorder{}
	c := New("abc", nil, rec.sink())
	require.NoError(t, c.Enqueue(content()))
	require.NoError(t, c.Enqueue(content()))
	c.Reset()
	require.NoError(t, c.Enqueue(content()))

	require.Len(t, rec.envs, 3)
	for i, env := range rec.envs {
		assert.Equal(t, "abc", env.SessionID)
		assert.Equal(t, uint64(i+1), env.Sequence)
	}
}

func TestRunContext_SinkErrorIsNotReturned(t *testing.T) {
	c := New("s", nil, SinkFunc(func(Envelope) error {
		return errors.New("transport down")
	}))
	assert.NoError(t, c.Enqueue(content()))
	assert.True(t, c.PageConfigAlreadySet())
}

func TestNew_Defaults(t *testing.T) {
	c := New("s", nil, nil)
	assert.NotNil(t, c.SessionState)
	assert.NoError(t, c.Enqueue(content()))
}
