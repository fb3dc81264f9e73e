// Package cmd defines the pollc command line: scrape one poll week to files,
// or serve scrapes over HTTP.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/app"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/clock/system"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/config"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/logging"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

// runtimeKeyType is the key for storing the Runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// App is the set of services commands use. Tests inject a fake.
type App interface {
	Scrape(ctx context.Context, id poll.Identity) (*poll.BallotSet, error)
	Export(ctx context.Context, set *poll.BallotSet) ([]string, error)
	SaveBallots(ctx context.Context, set *poll.BallotSet) (bool, error)
	Close()
}

// Runtime carries what PersistentPreRunE built to the subcommands.
type Runtime struct {
	Config config.Config
	Logger *zap.Logger
	App    App
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger, system.New())
}

// newRootCmd creates and configures the root command. The returned func
// releases whatever PersistentPreRunE built, including when RunE failed.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		rt      *Runtime
	)

	cmd := &cobra.Command{
		Use:   "pollc",
		Short: "Compiles college football poll ballots into JSON and CSV.",
		Long: `pollc scrapes the individual voter ballots behind a weekly college
football poll and writes them as a structured JSON dump, a flat CSV, and
rank-by-voter tables.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if f := cmd.Flags().Lookup("out"); f != nil && f.Changed {
				cfg.Output.Dir = f.Value.String()
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			rt = &Runtime{Config: cfg, Logger: logger, App: appInstance}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, rt))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())

	cleanup := func() {
		if rt == nil {
			return
		}
		rt.App.Close()
		_ = rt.Logger.Sync()
		rt = nil
	}
	return cmd, cleanup
}

func resolveRuntime(ctx context.Context) (*Runtime, error) {
	if ctx == nil {
		return nil, errors.New("application services not initialized")
	}
	rt, ok := ctx.Value(runtimeKey).(*Runtime)
	if !ok || rt == nil {
		return nil, errors.New("application services not initialized")
	}
	return rt, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, cleanup := newRootCmd()
	defer cleanup()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// Execute is the main entry point.
func Execute() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
