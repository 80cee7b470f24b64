// Main package for the shodanr command line tool.
package main

import (
	"log/slog"
	"os"

	"github.com/texasbe2trill/ShodanR/cmd/shodanr/commands"
	"github.com/texasbe2trill/ShodanR/internal/constants"
)

func main() {
	slog.SetLogLoggerLevel(constants.DefaultLogLevel)

	a, err := commands.New()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	os.Exit(run(a))
}

type app interface {
	Run() error
	UsageError() bool
}

func run(a app) int {
	if err := a.Run(); err != nil {
		slog.Error(err.Error())

		if a.UsageError() {
			return 2
		}
		return 1
	}

	return 0
}
