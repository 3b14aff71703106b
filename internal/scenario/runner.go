package scenario

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/joeycumines/rerun/internal/runctx"
	"github.com/joeycumines/rerun/internal/scripting"
	"github.com/joeycumines/rerun/internal/wire"
)

// Rerunner runs a script once against frontend widget states.
type Rerunner interface {
	Rerun(states *wire.WidgetStates) (scripting.RunResult, error)
}

// Recorder is a Sink that keeps the messages of the current run for the
// simulated frontend and forwards them to next.
type Recorder struct {
	next runctx.Sink

	mu   sync.Mutex
	msgs []*wire.ForwardMsg
}

// NewRecorder returns a Recorder forwarding to next, which may be nil.
func NewRecorder(next runctx.Sink) *Recorder {
	return &Recorder{next: next}
}

// Publish records env.Msg and forwards env.
func (r *Recorder) Publish(env runctx.Envelope) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, env.Msg)
	r.mu.Unlock()
	if r.next == nil {
		return nil
	}
	return r.next.Publish(env)
}

// Drain returns and forgets the recorded messages.
func (r *Recorder) Drain() []*wire.ForwardMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.msgs
	r.msgs = nil
	return msgs
}

var _ runctx.Sink = (*Recorder)(nil)

// StepResult is the outcome of one step.
type StepResult struct {
	Step string
	// Sent is the widget state delivered with the rerun.
	Sent *wire.WidgetStates
	Run  scripting.RunResult
}

// Runner plays scenarios against one session.
type Runner struct {
	session  Rerunner
	recorder *Recorder
	frontend *Frontend
}

// NewRunner returns a Runner for session, whose sink must be recorder.
func NewRunner(session Rerunner, recorder *Recorder) *Runner {
	return &Runner{
		session:  session,
		recorder: recorder,
		frontend: NewFrontend(),
	}
}

// Frontend returns the simulated frontend.
func (r *Runner) Frontend() *Frontend {
	return r.frontend
}

// Run plays every step of sc in order. It stops at the first interaction
// that cannot be applied or session failure; script errors are part of the
// step result.
func (r *Runner) Run(ctx context.Context, sc *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(sc.Steps))
	for _, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.Step(step)
		if err != nil {
			return results, errors.Wrapf(err, "step %q", step.Name)
		}
		results = append(results, res)
	}
	return results, nil
}

// Step applies step's interactions, then reruns.
func (r *Runner) Step(step Step) (StepResult, error) {
	states := r.frontend.Snapshot()
	if len(step.Interactions) > 0 {
		states = nil
		for _, in := range step.Interactions {
			update, err := r.frontend.Interact(in)
			if err != nil {
				return StepResult{}, err
			}
			states = wire.CoalesceWidgetStates(states, update)
		}
	}

	run, err := r.session.Rerun(states)
	r.frontend.Observe(r.recorder.Drain())
	if err != nil {
		return StepResult{}, err
	}

	log.Debug().
		Str("step", step.Name).
		Uint64("run_id", run.RunID).
		Str("status", run.Status).
		Int("widgets_sent", len(states.Widgets)).
		Msg("Scenario step finished")
	return StepResult{Step: step.Name, Sent: states, Run: run}, nil
}
