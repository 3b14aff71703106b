package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/rerun/internal/config"
	"github.com/joeycumines/rerun/internal/logging"
	"github.com/joeycumines/rerun/internal/runctx"
	"github.com/joeycumines/rerun/internal/scenario"
	"github.com/joeycumines/rerun/internal/scripting"
	"github.com/joeycumines/rerun/internal/wire"
)

// errScriptFailed is returned with --fail-on-exception when a run ended in
// an exception.
var errScriptFailed = errors.New("script run failed")

func newRunCmd(a *app) *cobra.Command {
	var (
		scenarioPath    string
		failOnException bool
	)
	cmd := &cobra.Command{
		Use:   "run [script.js]",
		Short: "Run a script through the reruns of a scenario",
		Long: `Run executes a script once per scenario step, feeding it the widget values
a browser would send after the step's interactions. Every outbound message is
printed to stdout as one JSON line.

Without --scenario the script runs once with no widget values. The script
argument overrides the scenario's script.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := &scenario.Scenario{Steps: []scenario.Step{{Name: "load"}}}
			if scenarioPath != "" {
				var err error
				if sc, err = scenario.Load(scenarioPath); err != nil {
					return err
				}
			}
			if len(args) == 1 {
				sc.Script = args[0]
			}
			if sc.Script == "" {
				return errors.New("no script given")
			}

			results, err := runScenario(cmd.Context(), a.cfg, sc, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if failOnException {
				for _, res := range results {
					if res.Run.Status == wire.StatusError {
						return errors.Wrapf(errScriptFailed, "step %q: %v", res.Step, res.Run.Err)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario file (YAML)")
	cmd.Flags().BoolVar(&failOnException, "fail-on-exception", false, "Exit non-zero if any run raised an exception")
	return cmd
}

// outputLine is the JSON form of one published message.
type outputLine struct {
	SessionID string           `json:"session_id"`
	Sequence  uint64           `json:"sequence"`
	Kind      wire.MsgKind     `json:"kind"`
	Msg       *wire.ForwardMsg `json:"msg"`
}

// runScenario publishes the session's messages on an in-process pub/sub and
// prints them from a subscriber while the scenario plays.
func runScenario(ctx context.Context, cfg *config.Config, sc *scenario.Scenario, out io.Writer) ([]scenario.StepResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	source, err := os.ReadFile(sc.Script)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read script")
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, logging.NewWatermill(log.Logger))
	defer func() { _ = pubSub.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	messages, err := pubSub.Subscribe(gctx, cfg.Topic)
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe")
	}

	// the script loop hands messages to the queue; only its goroutine waits
	// for the printer
	queue := runctx.NewAsyncSink(runctx.NewWatermillSink(pubSub, cfg.Topic))
	defer func() { _ = queue.Close() }()

	recorder := scenario.NewRecorder(queue)
	session, err := scripting.NewSession(ctx, sc.Script, string(source), scripting.SessionOptions{
		SessionID:   cfg.SessionID,
		Sink:        recorder,
		SyncTimeout: cfg.SyncTimeout,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Close() }()

	var results []scenario.StepResult
	g.Go(func() error {
		// closing ends the subscription once every queued message was acked
		defer func() {
			_ = queue.Close()
			_ = pubSub.Close()
		}()
		var err error
		results, err = scenario.NewRunner(session, recorder).Run(gctx, sc)
		for _, res := range results {
			log.Info().
				Str("step", res.Step).
				Uint64("run_id", res.Run.RunID).
				Str("status", res.Run.Status).
				Dur("duration", res.Run.Duration).
				Msg("Rerun finished")
		}
		return err
	})
	g.Go(func() error {
		return printMessages(messages, out)
	})

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func printMessages(messages <-chan *message.Message, out io.Writer) error {
	enc := json.NewEncoder(out)
	for msg := range messages {
		env, err := runctx.DecodeEnvelope(msg)
		msg.Ack()
		if err != nil {
			return err
		}
		err = enc.Encode(outputLine{
			SessionID: env.SessionID,
			Sequence:  env.Sequence,
			Kind:      env.Msg.Kind(),
			Msg:       env.Msg,
		})
		if err != nil {
			return errors.Wrap(err, "failed to write message")
		}
	}
	return nil
}
