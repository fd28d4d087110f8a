// Command bookrec is the entry point for the book recommendation service.
// It provides a CLI (via Cobra) for building the vector index and running
// searches, and an HTTP server with an optional web UI.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/bookrec-go/cmd/bookrec/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
