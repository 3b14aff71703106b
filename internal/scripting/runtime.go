package scripting

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/joeycumines/rerun/internal/goroutineid"
)

var (
	// ErrRuntimeStopped is returned for work submitted to a closed Runtime.
	ErrRuntimeStopped = errors.New("event loop not running")
	// ErrTimeout is returned when work on the loop exceeds the sync timeout.
	// The running script is interrupted.
	ErrTimeout = errors.New("script loop timed out")
)

// Runtime owns one goja runtime and the event loop that serializes access to
// it. Each session has its own Runtime, so sessions execute independently.
//
// goja.Runtime is not goroutine-safe: every use of the VM must happen inside
// a function passed to RunOnLoop or RunOnLoopSync.
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry

	// vm is captured on the loop for Interrupt, the only VM method that may
	// be called from another goroutine.
	vm atomic.Pointer[goja.Runtime]

	loopGoroutineID atomic.Int64

	mu      sync.RWMutex
	timeout time.Duration
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// DefaultSyncTimeout bounds RunOnLoopSync unless SetTimeout overrides it.
const DefaultSyncTimeout = 5 * time.Second

// NewRuntime starts a Runtime whose loop resolves require() through
// registry, or through a new registry if registry is nil. Cancelling ctx
// closes the Runtime.
func NewRuntime(ctx context.Context, registry *require.Registry) (*Runtime, error) {
	if registry == nil {
		registry = require.NewRegistry()
	}

	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(false),
	)

	childCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		loop:     loop,
		registry: registry,
		timeout:  DefaultSyncTimeout,
		ctx:      childCtx,
		cancel:   cancel,
	}

	loop.Start()

	ready := make(chan struct{})
	if !loop.RunOnLoop(func(vm *goja.Runtime) {
		rt.vm.Store(vm)
		rt.loopGoroutineID.Store(goroutineid.Get())
		close(ready)
	}) {
		cancel()
		return nil, errors.WithStack(ErrRuntimeStopped)
	}
	<-ready

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() {
			_ = rt.Close()
		})
	}

	return rt, nil
}

// Registry returns the require registry of the loop.
func (rt *Runtime) Registry() *require.Registry {
	return rt.registry
}

// Close stops the loop. It is safe to call more than once.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	// unblock waiters before the loop drains
	rt.cancel()
	if vm := rt.vm.Load(); vm != nil {
		vm.Interrupt(ErrRuntimeStopped)
	}
	rt.loop.Stop()
	return nil
}

// Done is closed when the Runtime is closed.
func (rt *Runtime) Done() <-chan struct{} {
	return rt.ctx.Done()
}

// IsRunning reports whether the Runtime accepts work.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return !rt.stopped
}

// SetTimeout sets the RunOnLoopSync timeout. Zero disables it.
func (rt *Runtime) SetTimeout(timeout time.Duration) {
	rt.mu.Lock()
	rt.timeout = timeout
	rt.mu.Unlock()
}

// Timeout returns the RunOnLoopSync timeout.
func (rt *Runtime) Timeout() time.Duration {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.timeout
}

// OnLoop reports whether the caller is the loop goroutine.
func (rt *Runtime) OnLoop() bool {
	id := rt.loopGoroutineID.Load()
	return id != 0 && id == goroutineid.Get()
}

// RunOnLoop schedules fn on the loop without waiting. It returns false if
// the Runtime is closed.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync runs fn on the loop and waits for it. On timeout the VM is
// interrupted, so a runaway script ends with an interrupt error on the loop
// while the caller gets ErrTimeout. Called from the loop goroutine, fn runs
// directly.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	if !rt.IsRunning() {
		return errors.WithStack(ErrRuntimeStopped)
	}
	if rt.OnLoop() {
		return fn(rt.vm.Load())
	}
	timeout := rt.Timeout()

	errCh := make(chan error, 1)
	if !rt.loop.RunOnLoop(func(vm *goja.Runtime) {
		errCh <- fn(vm)
	}) {
		return errors.WithStack(ErrRuntimeStopped)
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return errors.Wrap(ErrRuntimeStopped, "runtime stopped before completion")
	case <-timer:
		if vm := rt.vm.Load(); vm != nil {
			vm.Interrupt(ErrTimeout)
		}
		log.Warn().Dur("timeout", timeout).Msg("Interrupted script loop")
		return errors.Wrapf(ErrTimeout, "after %v", timeout)
	}
}
