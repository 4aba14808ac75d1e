package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/archcost/internal/server"
	"github.com/rshade/archcost/internal/telemetry"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the estimation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				st.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Init(ctx, st.cfg.Telemetry, version, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(flushCtx); err != nil {
					st.logger.Error().Err(err).Msg("Trace exporter shutdown failed")
				}
			}()

			a, err := newApp(ctx, st.cfg, st.logger)
			if err != nil {
				return err
			}
			if a.generator == nil {
				st.logger.Warn().Msg("generation endpoint not configured; /mcp/azure/diagram-tf will fail")
			}
			srv, err := server.New(st.cfg.Server, a.serverDeps(), st.logger)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")
	return cmd
}
