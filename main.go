// querybot – terminal client for a natural-language SQL and data
// analysis backend.
//
// Entry point: initializes Cobra root command and launches
// the Bubble Tea TUI by default (no subcommand required).
package main

import (
	"os"

	"github.com/DachengChen/querybot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
