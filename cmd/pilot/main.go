// Command pilot is a thin CLI front end over the engine: it wires the
// Planner, Executor, Tool Router, Event Bus, and Approval Gate into one
// process and drives a single run to completion, printing its event
// stream to stdout.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pilot:", err)
		os.Exit(1)
	}
}
