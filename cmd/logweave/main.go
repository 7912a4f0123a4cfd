// Package main implements the logweave CLI for inspecting and exercising
// logger configurations.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/logweave/internal/config"
	"github.com/fyrsmithlabs/logweave/internal/logging"
	"github.com/fyrsmithlabs/logweave/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "logweave",
		Short: "Build and exercise configured loggers",
		Long: `logweave reads a logger configuration and builds the loggers it names.
It can emit test entries, list configured loggers, check that every
logger builds, and run a collector for http transports.

Configuration is read from --config (YAML) and LOGWEAVE_ environment
variables, for example LOGWEAVE_LOGGER__DEFAULT=app.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print engine diagnostics at debug level")

	cmd.AddCommand(newEmitCmd(opts))
	cmd.AddCommand(newLoggersCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// cliEnv is what commands share once configuration is loaded.
type cliEnv struct {
	tree   *config.Tree
	opts   *logging.Options
	engine *logging.Engine
	tel    *telemetry.Telemetry
	diag   *zap.Logger
}

// load reads configuration and builds the engine. Console output goes
// to the command's writers.
func load(ctx context.Context, cmd *cobra.Command, ro *rootOptions) (*cliEnv, error) {
	tree, err := config.Load(ro.configPath)
	if err != nil {
		return nil, err
	}

	opts, err := logging.OptionsFromTree(tree)
	if err != nil {
		return nil, err
	}

	diag := newDiagLogger(cmd.ErrOrStderr(), ro.verbose)

	telCfg := telemetry.NewDefaultConfig()
	if err := tree.Unmarshal("telemetry", telCfg); err != nil {
		return nil, fmt.Errorf("unmarshal telemetry config: %w", err)
	}
	tel, err := telemetry.New(ctx, telCfg, telemetry.WithLogger(diag))
	if err != nil {
		return nil, err
	}

	engine, err := logging.NewEngine(opts,
		logging.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		logging.WithDiagnostics(diag),
		logging.WithMeter(tel.Meter("github.com/fyrsmithlabs/logweave")),
		logging.WithLoggerProvider(tel.LoggerProvider()),
	)
	if err != nil {
		return nil, err
	}

	return &cliEnv{
		tree:   tree,
		opts:   opts,
		engine: engine,
		tel:    tel,
		diag:   diag,
	}, nil
}

// close flushes and closes loggers, then telemetry.
func (r *cliEnv) close(ctx context.Context) {
	if err := r.engine.Close(); err != nil {
		r.diag.Debug("engine close failed", zap.Error(err))
	}
	if err := r.tel.Shutdown(ctx); err != nil {
		r.diag.Debug("telemetry shutdown failed", zap.Error(err))
	}
}

func newDiagLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return zap.New(core).Named("logweave")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the logweave version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "logweave %s\n", version)
		},
	}
}
