// Package scripting hosts user scripts: each Session owns a goja runtime on
// its own event loop and reruns the script against its session state.
package scripting

import (
	"context"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/joeycumines/rerun/internal/runctx"
	"github.com/joeycumines/rerun/internal/sessionstate"
	"github.com/joeycumines/rerun/internal/widgets"
	"github.com/joeycumines/rerun/internal/wire"
)

// SessionOptions configures NewSession.
type SessionOptions struct {
	// SessionID defaults to a random UUID.
	SessionID string
	// Sink receives outbound messages; nil discards them.
	Sink runctx.Sink
	// Registry defaults to runctx.Default.
	Registry *runctx.Registry
	// SyncTimeout bounds one rerun; zero uses DefaultSyncTimeout.
	SyncTimeout time.Duration
}

// Session is one browser session running one script.
type Session struct {
	id       string
	name     string
	program  *goja.Program
	rt       *Runtime
	ctx      *runctx.RunContext
	registry *runctx.Registry

	// runs is only touched on the loop
	runs uint64
}

// RunResult describes one completed rerun.
type RunResult struct {
	RunID    uint64
	Status   string
	Duration time.Duration
	// Err is the script or callback error reported to the frontend, if any.
	Err error
}

// NewSession compiles source and starts a session for it. The script does not
// run until the first Rerun.
func NewSession(ctx context.Context, name, source string, opts SessionOptions) (*Session, error) {
	program, err := goja.Compile(name, source, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile %s", name)
	}

	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Registry == nil {
		opts.Registry = runctx.Default
	}
	if _, exists := opts.Registry.Get(opts.SessionID); exists {
		return nil, errors.Errorf("session %q already exists", opts.SessionID)
	}

	rt, err := NewRuntime(ctx, nil)
	if err != nil {
		return nil, err
	}
	if opts.SyncTimeout > 0 {
		rt.SetTimeout(opts.SyncTimeout)
	}
	rt.Registry().RegisterNativeModule(ModuleName, RequireST(opts.Registry))

	s := &Session{
		id:       opts.SessionID,
		name:     name,
		program:  program,
		rt:       rt,
		ctx:      runctx.New(opts.SessionID, sessionstate.New(), opts.Sink),
		registry: opts.Registry,
	}

	if err := rt.RunOnLoopSync(s.installGlobals); err != nil {
		_ = rt.Close()
		return nil, errors.Wrap(err, "failed to install script globals")
	}
	opts.Registry.Add(s.ctx)

	log.Debug().Str("session_id", s.id).Str("script", name).Msg("Session created")
	return s, nil
}

func (s *Session) installGlobals(vm *goja.Runtime) error {
	st, err := vm.RunString(`require("` + ModuleName + `")`)
	if err != nil {
		return err
	}
	if err := vm.Set("st", st); err != nil {
		return err
	}
	// console reuses the st.log levels
	stLog := st.ToObject(vm).Get("log").ToObject(vm)
	console := vm.NewObject()
	for name, target := range map[string]string{"log": "info", "info": "info", "debug": "debug", "warn": "warn", "error": "error"} {
		_ = console.Set(name, stLog.Get(target))
	}
	return vm.Set("console", console)
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// RunContext returns the session's run context.
func (s *Session) RunContext() *runctx.RunContext {
	return s.ctx
}

// Rerun applies the frontend's widget states and executes the script once.
// Script and callback errors are reported to the frontend as an exception
// element and returned in the result; the run still finishes and culls.
// Callbacks run before the script, so a failing callback is reported first
// and the script runs anyway.
// The returned error is for failures of the session itself.
func (s *Session) Rerun(states *wire.WidgetStates) (RunResult, error) {
	// after a timeout the loop may still be running, so the result is only
	// read once fn has returned
	results := make(chan RunResult, 1)
	if err := s.rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		result, err := s.rerun(vm, states)
		results <- result
		return err
	}); err != nil {
		return RunResult{}, err
	}
	return <-results, nil
}

func (s *Session) rerun(vm *goja.Runtime, states *wire.WidgetStates) (RunResult, error) {
	unbind, err := s.registry.Bind(s.id)
	if err != nil {
		return RunResult{}, err
	}
	defer unbind()

	vm.ClearInterrupt()
	s.runs++
	result := RunResult{RunID: s.runs, Status: wire.StatusSuccess}
	start := time.Now()
	logger := log.With().Str("session_id", s.id).Uint64("run_id", result.RunID).Logger()
	logger.Debug().Int("widget_states", len(statesOf(states))).Msg("Rerun started")

	s.ctx.Reset()
	builder := widgets.NewBuilder(s.ctx)
	state := s.ctx.SessionState

	if err := state.OnScriptWillRerun(states); err != nil {
		result.Status, result.Err = wire.StatusError, err
		s.reportException(builder, err)
	}

	// a failed callback does not skip the script: the widgets it declares
	// must survive culling
	if _, err := vm.RunProgram(s.program); err != nil {
		result.Status = wire.StatusError
		if result.Err == nil {
			result.Err = err
		}
		s.reportException(builder, err)
	}

	state.OnScriptFinished()

	if err := s.ctx.Enqueue(&wire.ForwardMsg{ScriptFinished: &wire.ScriptFinished{
		RunID:  result.RunID,
		Status: result.Status,
	}}); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	logger.Debug().
		Str("status", result.Status).
		Dur("duration", result.Duration).
		Msg("Rerun finished")
	return result, nil
}

func statesOf(states *wire.WidgetStates) []*wire.WidgetState {
	if states == nil {
		return nil
	}
	return states.Widgets
}

// reportException sends err to the frontend as an exception element.
func (s *Session) reportException(b *widgets.Builder, err error) {
	typ, msg := describeError(err)
	log.Debug().Str("session_id", s.id).Str("type", typ).Str("message", msg).Msg("Script raised an exception")
	if enqueueErr := b.Exception(typ, msg); enqueueErr != nil {
		log.Warn().Err(enqueueErr).Str("session_id", s.id).Msg("Failed to report exception")
	}
}

// describeError names the JavaScript error class of err and its message.
func describeError(err error) (typ, msg string) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return "InterruptedError", interrupted.Error()
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		typ = "Error"
		if obj, ok := ex.Value().(*goja.Object); ok {
			if name := obj.Get("name"); !isMissing(name) {
				typ = name.String()
			}
			if m := obj.Get("message"); !isMissing(m) {
				return typ, m.String()
			}
		}
		return typ, strings.TrimSpace(ex.Value().String())
	}
	return "Error", err.Error()
}

// WidgetStates returns the session's current widget values, as a frontend
// would hold them after applying the run's deltas.
func (s *Session) WidgetStates() (*wire.WidgetStates, error) {
	var out *wire.WidgetStates
	err := s.rt.RunOnLoopSync(func(*goja.Runtime) error {
		records, err := s.ctx.SessionState.AsWireStates()
		if err != nil {
			return err
		}
		out = &wire.WidgetStates{Widgets: records}
		return nil
	})
	return out, err
}

// State returns the session state visible to the script, keyed widgets
// included.
func (s *Session) State() (map[string]any, error) {
	var out map[string]any
	err := s.rt.RunOnLoopSync(func(*goja.Runtime) error {
		out = s.ctx.SessionState.FilteredState()
		return nil
	})
	return out, err
}

// Close stops the session's loop and removes it from the registry.
func (s *Session) Close() error {
	s.registry.Remove(s.id)
	log.Debug().Str("session_id", s.id).Msg("Session closed")
	return s.rt.Close()
}
