package main

import (
	"os"

	"github.com/bonjohen/hubqueue/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
