// Command odab solves problems with a tool-using language model.
//
// Usage:
//
//	odab [--config odab.yaml] [--log-level debug] <command>
//
// Commands:
//
//	solve     solve a problem from --text and/or --image
//	extract   transcribe the problem shown in --image
//	edit      rewrite --problem according to --request
//	verify    grade the handwritten answer in --image
//	concepts  print the concept catalogue
//	index     embed and store reference problems from a YAML file
//	mcp       serve the sequentialThinking tool over stdio
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "odab: %v\n", err)
		return 1
	}
	return 0
}
