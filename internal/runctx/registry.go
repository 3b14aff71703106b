package runctx

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/joeycumines/rerun/internal/goroutineid"
)

// Registry maps session ids to their run contexts, and goroutines to the
// session whose run they are executing.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*RunContext
	bound    map[int64]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*RunContext),
		bound:    make(map[int64]string),
	}
}

// Default is the process-wide registry used by script bindings.
var Default = NewRegistry()

// Add registers ctx under its session id, replacing any previous context.
func (r *Registry) Add(ctx *RunContext) {
	r.mu.Lock()
	r.sessions[ctx.SessionID] = ctx
	r.mu.Unlock()
}

// Remove forgets the session and any goroutine bound to it.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	for gid, sid := range r.bound {
		if sid == sessionID {
			delete(r.bound, gid)
		}
	}
}

// Get returns the context registered for sessionID.
func (r *Registry) Get(sessionID string) (*RunContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.sessions[sessionID]
	return ctx, ok
}

// Bind marks the calling goroutine as running sessionID until the returned
// function is called. The unbind function must be called on the same
// goroutine.
func (r *Registry) Bind(sessionID string) (unbind func(), err error) {
	gid := goroutineid.Get()
	if gid == 0 {
		return nil, errors.New("cannot determine goroutine id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return nil, errors.Errorf("session %q is not registered", sessionID)
	}
	prev, hadPrev := r.bound[gid]
	r.bound[gid] = sessionID
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if hadPrev {
			r.bound[gid] = prev
		} else {
			delete(r.bound, gid)
		}
	}, nil
}

// Current returns the context of the session running on the calling
// goroutine. It is resolved on every call.
func (r *Registry) Current() (*RunContext, error) {
	gid := goroutineid.Get()
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.bound[gid]
	if !ok {
		return nil, errors.WithStack(ErrNoActiveSession)
	}
	ctx, ok := r.sessions[sid]
	if !ok {
		return nil, errors.Wrapf(ErrNoActiveSession, "session %q was removed", sid)
	}
	return ctx, nil
}

// Current resolves the active run context from the Default registry.
func Current() (*RunContext, error) {
	return Default.Current()
}
