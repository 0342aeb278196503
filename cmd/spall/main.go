// Package main provides the entry point for the spall CLI.
package main

import (
	"os"

	"github.com/spall-labs/spall/cmd/spall/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
