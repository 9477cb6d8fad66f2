package main

import (
	"github.com/spf13/cobra"

	"github.com/Jacky-ZJQ/mcp-gateway/internal/config"
)

const version = "1.0.0"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "mcp-gateway",
		Short: "MCP tool gateway for course and skill tools",
		Long: `mcp-gateway exposes a catalog of tools to MCP clients.

Tools come from three sources merged at startup: configured overrides,
built-in self-describing tools and hand-written handlers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (env MCP_GATEWAY_CONFIG)")

	root.AddCommand(
		newServeCmd(opts),
		newStdioCmd(opts),
		newToolsCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(config.ResolvePath(o.configPath))
}
