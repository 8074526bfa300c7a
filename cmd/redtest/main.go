// Command redtest drives the rust-red flow runtime with flow documents
// and scenarios, collecting its framed JSON output.
package main

import (
	"fmt"
	"os"

	"github.com/ZJvandeWeg/rust-red/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
