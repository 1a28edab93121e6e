// Package main is the entry point for the stagecast playout server.
package main

import (
	"os"

	"github.com/onairstack/stagecast/cmd/stagecast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
