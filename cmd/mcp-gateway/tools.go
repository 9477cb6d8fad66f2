package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the resolved tool catalog as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log := setupLogger(cfg.Logging, os.Stderr)

			g, err := newGateway(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer g.Close()

			return g.printTools(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (g *gateway) printTools(ctx context.Context, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g.engine.ListTools(ctx))
}
