// Package constants is responsible for defining the constants used in the application.
package constants

import (
	"log/slog"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "shodanr"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultAPIURL is the Shodan host search endpoint.
	DefaultAPIURL = "https://api.shodan.io/shodan/host/search"

	// APIKeyEnv is the environment variable holding the Shodan API key.
	APIKeyEnv = "SHODAN_API_KEY"

	// DefaultQuery matches hosts exposing a screenshot whose OCR text looks like a ransom note.
	DefaultQuery = "has_screenshot:true encrypted attention"

	// DefaultLimit is the default maximum number of results requested from the API.
	DefaultLimit = 1000

	// DefaultOutputFile is the default path of the device table checkpoint.
	DefaultOutputFile = "ransomware_devices.csv"

	// DefaultSummaryFormat is the default encoding of the summary file.
	DefaultSummaryFormat = "json"
)

// Version is the version of the executable. It is overridden at build time.
var Version = "Dev"
