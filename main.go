package main

import (
	"os"

	"github.com/firefly-engineering/skillctl/cmd"
	"github.com/firefly-engineering/skillctl/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
