// Command mcp-gateway serves the course and skill tools over MCP, either as
// a Streamable HTTP endpoint or on stdio.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
