// Package main provides the entry point for the grantscout CLI.
package main

import (
	"fmt"
	"os"

	"github.com/grantscout/grantscout/cmd/grantscout/cmd"
	gserrors "github.com/grantscout/grantscout/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// Stderr, never stdout: in server mode stdout belongs to the
		// MCP stream.
		fmt.Fprint(os.Stderr, gserrors.FormatForCLI(err))
		os.Exit(1)
	}
}
