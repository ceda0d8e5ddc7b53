package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/halcyon-eng/statecore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Subcommands print their own formatted errors; flag and usage
		// errors from cobra still need to reach the user.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
