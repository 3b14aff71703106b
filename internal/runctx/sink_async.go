package runctx

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrSinkClosed is returned by AsyncSink.Publish after Close.
var ErrSinkClosed = errors.New("sink closed")

// AsyncSink queues messages without bound and forwards them to next, in
// order, from its own goroutine. Publish never waits on next, so a slow
// consumer cannot stall the script loop.
type AsyncSink struct {
	next Sink

	mu     sync.Mutex
	queue  []Envelope
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewAsyncSink starts forwarding to next. Close must be called to release
// the goroutine.
func NewAsyncSink(next Sink) *AsyncSink {
	s := &AsyncSink{
		next: next,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// Publish queues env and returns immediately.
func (s *AsyncSink) Publish(env Envelope) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.Wrapf(ErrSinkClosed, "sequence %d", env.Sequence)
	}
	s.queue = append(s.queue, env)
	s.mu.Unlock()
	s.signal()
	return nil
}

// Close stops accepting messages and waits until every queued message was
// handed to next. It is safe to call more than once.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
	<-s.done
	return nil
}

func (s *AsyncSink) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		batch, closed := s.queue, s.closed
		s.queue = nil
		s.mu.Unlock()

		for _, env := range batch {
			if err := s.next.Publish(env); err != nil {
				log.Warn().Err(err).
					Str("session_id", env.SessionID).
					Uint64("sequence", env.Sequence).
					Msg("Failed to forward queued message")
			}
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-s.wake
		}
	}
}

var _ Sink = (*AsyncSink)(nil)
