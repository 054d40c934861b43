package main

import (
	"fmt"
	"os"

	"github.com/dalemusser/formhub/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formctl:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
