package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fyrsmithlabs/logweave/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type emitOptions struct {
	logger  string
	level   string
	context []string
	fields  []string
	clear   bool
}

func newEmitCmd(ro *rootOptions) *cobra.Command {
	eo := &emitOptions{}

	cmd := &cobra.Command{
		Use:   "emit [message]",
		Short: "Emit an entry through a configured logger",
		Long: `Emit one entry through a configured logger, or the default logger
when --logger is not given.

Examples:
  # Emit through the default logger at debug
  logweave emit -c config.yaml "cache warmed"

  # Emit at warn through the audit logger with a context object
  logweave emit -c config.yaml -l audit --level warn --context user=42 "login failed"

  # Read the message from stdin
  echo "from a pipe" | logweave emit -c config.yaml -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(cmd, ro, eo, args)
		},
	}

	cmd.Flags().StringVarP(&eo.logger, "logger", "l", "", "logger name (default: configured default)")
	cmd.Flags().StringVar(&eo.level, "level", "debug", "entry level (error, warn, info, http, verbose, debug)")
	cmd.Flags().StringSliceVar(&eo.context, "context", nil, "context key=value pairs attached with WithContext")
	cmd.Flags().StringSliceVar(&eo.fields, "field", nil, "extra key=value fields")
	cmd.Flags().BoolVar(&eo.clear, "without-context", false, "emit through a view with the context cleared")
	return cmd
}

func runEmit(cmd *cobra.Command, ro *rootOptions, eo *emitOptions, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	msg, err := readMessage(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	ctxObj, err := parsePairs(eo.context)
	if err != nil {
		return fmt.Errorf("--context: %w", err)
	}
	extra, err := parsePairs(eo.fields)
	if err != nil {
		return fmt.Errorf("--field: %w", err)
	}

	env, err := load(ctx, cmd, ro)
	if err != nil {
		return err
	}
	defer env.close(ctx)

	l, err := env.engine.Logger(eo.logger)
	if err != nil {
		return err
	}
	switch {
	case eo.clear:
		l = l.WithoutContext()
	case len(ctxObj) > 0:
		l = l.WithContext(ctxObj)
	}

	fields := make([]zap.Field, 0, len(extra))
	for k, v := range extra {
		fields = append(fields, zap.String(k, v))
	}
	return l.Log(ctx, eo.level, msg, fields...)
}

func readMessage(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("a message is required (use - to read stdin)")
	}
	if args[0] != "-" {
		return args[0], nil
	}
	content, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return strings.TrimRight(string(content), "\n"), nil
}

// parsePairs parses key=value pairs.
func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func newLoggersCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "loggers",
		Short: "List configured loggers",
		Long: `List every logger under logger.loggers with its level and transports.
The default logger is marked with *.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			env, err := load(ctx, cmd, ro)
			if err != nil {
				return err
			}
			defer env.close(ctx)
			return printLoggers(cmd.OutOrStdout(), env.opts)
		},
	}
}

func printLoggers(w io.Writer, opts *logging.Options) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLEVEL\tTRANSPORTS")

	names := make([]string, 0, len(opts.Loggers))
	for n := range opts.Loggers {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		cfg := opts.Loggers[n]
		level := cfg.Level
		if level == 0 {
			level = logging.DefaultLoggerConfig().Level
		}
		marker := ""
		if n == opts.Default {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\n", n, marker, level, describeTransports(cfg.Transports))
	}
	return tw.Flush()
}

func describeTransports(specs []logging.TransportSpec) string {
	if len(specs) == 0 {
		specs = logging.DefaultLoggerConfig().Transports
	}
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		formats := make([]string, 0, len(s.Format))
		for _, f := range s.Format {
			formats = append(formats, f.String())
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", s.Transport, strings.Join(formats, ",")))
	}
	return strings.Join(parts, " ")
}

func newCheckCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Build every configured logger and report failures",
		Long: `Build every logger under logger.loggers. Exits non-zero when any logger
fails to build, for example because it references an unknown format.
Transports without a driver are reported as diagnostics and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			env, err := load(ctx, cmd, ro)
			if err != nil {
				return err
			}
			defer env.close(ctx)
			return runCheck(cmd.OutOrStdout(), env.engine)
		},
	}
}

func runCheck(w io.Writer, engine *logging.Engine) error {
	names := engine.Configured()
	if len(names) == 0 {
		fmt.Fprintln(w, "no loggers configured")
		return nil
	}

	var failed int
	for _, n := range names {
		l, err := engine.Logger(n)
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", n, err)
			continue
		}
		fmt.Fprintf(w, "ok    %s (%d sinks, level %s)\n", n, l.Sinks(), l.Level())
	}

	if d := engine.Options().Default; d != "" && !engine.Store().Exists(d) {
		failed++
		fmt.Fprintf(w, "FAIL  default logger %q did not build\n", d)
	}

	if failed > 0 {
		return fmt.Errorf("%d logger(s) failed to build", failed)
	}
	return nil
}
