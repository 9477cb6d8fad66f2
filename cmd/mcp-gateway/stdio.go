package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Jacky-ZJQ/mcp-gateway/stdio"
)

func newStdioCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP over stdin/stdout, one JSON message per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			// stdout carries protocol traffic.
			log := setupLogger(cfg.Logging, os.Stderr)

			g, err := newGateway(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer g.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			h := stdio.NewHandler(g.engine,
				stdio.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
				stdio.WithLogger(log),
			)
			return h.Serve(ctx)
		},
	}
}
