package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/decadal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "decadal: %s\n", cli.Describe(err))
		os.Exit(cli.ExitCode(err))
	}
}
