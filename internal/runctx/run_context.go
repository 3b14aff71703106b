// Package runctx holds the per-session run context: the session's state, its
// outbound message sink and the page configuration gate, plus the registry
// that resolves which session is running on the calling goroutine.
package runctx

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/joeycumines/rerun/internal/sessionstate"
	"github.com/joeycumines/rerun/internal/wire"
)

// pageConfigState tracks the page configuration window of one run. Both
// non-initial states close the window; they are kept apart so the error says
// why.
type pageConfigState int

const (
	configurable pageConfigState = iota
	pageConfigSet
	contentStarted
)

// RunContext is the context of one browser session.
type RunContext struct {
	SessionID    string
	SessionState *sessionstate.SessionState

	sink Sink

	mu       sync.Mutex
	gate     pageConfigState
	sequence uint64
}

// New creates a RunContext. A nil sink discards messages.
func New(sessionID string, state *sessionstate.SessionState, sink Sink) *RunContext {
	if sink == nil {
		sink = NewNullSink()
	}
	if state == nil {
		state = sessionstate.New()
	}
	return &RunContext{
		SessionID:    sessionID,
		SessionState: state,
		sink:         sink,
	}
}

// Reset reopens the page configuration window for a new run.
func (c *RunContext) Reset() {
	c.mu.Lock()
	c.gate = configurable
	c.mu.Unlock()
}

// PageConfigAlreadySet reports whether the page configuration window is
// closed for the current run.
func (c *RunContext) PageConfigAlreadySet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate != configurable
}

// Enqueue hands msg to the sink. A page configuration message is accepted
// only as the first message of a run; any other message closes the window.
// Delivery is fire-and-forget: sink failures are logged, not returned.
func (c *RunContext) Enqueue(msg *wire.ForwardMsg) error {
	c.mu.Lock()
	if msg.Kind() == wire.MsgPageConfigChanged {
		switch c.gate {
		case pageConfigSet:
			c.mu.Unlock()
			log.Debug().Str("session_id", c.SessionID).Msg("Rejected second page config")
			return errors.WithStack(ErrPageConfigAlreadySet)
		case contentStarted:
			c.mu.Unlock()
			log.Debug().Str("session_id", c.SessionID).Msg("Rejected late page config")
			return errors.WithStack(ErrPageConfigTooLate)
		}
		c.gate = pageConfigSet
	} else if c.gate == configurable {
		c.gate = contentStarted
	}
	c.sequence++
	env := Envelope{SessionID: c.SessionID, Sequence: c.sequence, Msg: msg}
	c.mu.Unlock()

	if err := c.sink.Publish(env); err != nil {
		log.Warn().Err(err).
			Str("session_id", c.SessionID).
			Uint64("sequence", env.Sequence).
			Msg("Failed to publish forward message")
	}
	return nil
}
