package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	collector "github.com/fyrsmithlabs/logweave/internal/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	host  string
	port  int
	scrub bool
}

func newServeCmd(ro *rootOptions) *cobra.Command {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a collector that receives entries from http transports",
		Long: `Run an HTTP collector. Entries posted to /api/v1/logs/<logger> by
http transports elsewhere are re-emitted through the named logger of this
configuration; /api/v1/logs uses the default logger.

The collector is configured under the "collector" key (host, port, token,
scrub, body_limit). Flags override the file.

Example:
  logweave serve -c collector.yaml --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, ro, so)
		},
	}

	cmd.Flags().StringVar(&so.host, "host", "", "listen host (default from config, else localhost)")
	cmd.Flags().IntVar(&so.port, "port", 0, "listen port (default from config, else 9090)")
	cmd.Flags().BoolVar(&so.scrub, "scrub", false, "scrub credentials from received messages")
	return cmd
}

func runServe(cmd *cobra.Command, ro *rootOptions, so *serveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := load(ctx, cmd, ro)
	if err != nil {
		return err
	}
	defer env.close(context.Background())

	cfg := collector.NewDefaultConfig()
	if err := env.tree.Unmarshal("collector", cfg); err != nil {
		return fmt.Errorf("unmarshal collector config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = so.host
	}
	if flags.Changed("port") {
		cfg.Port = so.port
	}
	if flags.Changed("scrub") {
		cfg.Scrub = so.scrub
	}

	srv, err := collector.NewServer(env.engine, env.diag, cfg,
		collector.WithMeter(env.tel.Meter("github.com/fyrsmithlabs/logweave/collector")))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		env.diag.Warn("collector shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
