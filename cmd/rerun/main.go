package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joeycumines/rerun/internal/config"
	"github.com/joeycumines/rerun/internal/logging"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		stop()
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the configuration resolved before any subcommand runs.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v}

	rootCmd := &cobra.Command{
		Use:           "rerun",
		Short:         "rerun runs widget scripts against simulated browser sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(config.KeyConfig, "", "Path to config file (default ./rerun.yaml, ~/.rerun/rerun.yaml)")
	flags.String(config.KeyLogLevel, "info", "Log level (trace, debug, info, warn, error, fatal)")
	flags.String(config.KeyLogFormat, logging.FormatJSON, "Log format (json, text)")
	flags.String(config.KeyLogFile, "", "Also log to this file, rotated")
	flags.Bool(config.KeyWithCaller, false, "Log caller")
	flags.Duration(config.KeySyncTimeout, config.DefaultSyncTimeout, "Maximum duration of one rerun")
	flags.String(config.KeyTopic, config.DefaultTopic, "Topic outbound messages are published on")
	flags.String(config.KeySessionID, "", "Session id (default random)")

	rootCmd.AddCommand(newRunCmd(a), newVersionCmd())
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	if err := config.Init(a.v, a.v.GetString(config.KeyConfig)); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.Log); err != nil {
		return err
	}
	a.cfg = cfg

	log.Debug().
		Str("config", cfg.File).
		Str("session_id", cfg.SessionID).
		Msg("Loaded configuration")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "rerun version %s\n", version)
			return err
		},
	}
}
