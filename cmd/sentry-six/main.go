package main

import (
	"fmt"
	"os"

	"github.com/ChadR23/sentry-six/cmd/sentry-six/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
