// Command pyrs transpiles a statically inferable subset of Python to Rust.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pyrs/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
