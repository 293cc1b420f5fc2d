// Package main provides the entry point for the semcode-mcp CLI.
package main

import (
	"os"

	"github.com/semcode/semcode-mcp/cmd/semcode-mcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
