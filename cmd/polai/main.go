// Command polai is the entry point for the polai policy document assistant.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// retrieval and question-answering API.
package main

import (
	"fmt"
	"os"

	"github.com/polai/polai-go/cmd/polai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
