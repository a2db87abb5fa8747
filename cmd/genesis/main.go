// Command genesis loads a chain genesis document into indexer seed tables.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/genesis/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
