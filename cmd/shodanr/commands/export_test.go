package commands

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/texasbe2trill/ShodanR/internal/constants"
	"gopkg.in/yaml.v3"
)

type (
	AppConfig       = appConfig
	ScanConfig      = scanConfig
	SummarizeConfig = summarizeConfig
)

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// NewForTests creates a new App instance for testing purposes, loading conf from a generated configuration file.
func NewForTests(t *testing.T, conf *AppConfig, args ...string) *App {
	t.Helper()

	p := GenerateTestConfig(t, conf)
	argsWithConf := append(append([]string{}, args...), "--config", p)

	a, err := New()
	require.NoError(t, err, "Setup: failed to create app")
	a.cmd.SetArgs(argsWithConf)
	return a
}

// GenerateTestConfig generates a temporary config file for testing.
//
// Unset scan and summarize fields get their flag defaults, as the file takes precedence over them.
func GenerateTestConfig(t *testing.T, origConf *AppConfig) string {
	t.Helper()

	var conf appConfig

	if origConf != nil {
		conf = *origConf
	}

	if conf.Verbosity == 0 {
		conf.Verbosity = 2
	}
	if conf.Scan.Query == "" {
		conf.Scan.Query = constants.DefaultQuery
	}
	if conf.Scan.Limit == 0 {
		conf.Scan.Limit = constants.DefaultLimit
	}
	if conf.Scan.Output == "" {
		conf.Scan.Output = filepath.Join(t.TempDir(), constants.DefaultOutputFile)
	}
	if conf.Scan.SummaryFormat == "" {
		conf.Scan.SummaryFormat = constants.DefaultSummaryFormat
	}
	if conf.Scan.APIURL == "" {
		conf.Scan.APIURL = constants.DefaultAPIURL
	}
	if conf.Summarize.Format == "" {
		conf.Summarize.Format = textFormat
	}

	d, err := yaml.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal config for tests")

	confPath := filepath.Join(t.TempDir(), "testconfig.yaml")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write config for tests")

	return confPath
}

// SetArgs set some arguments on root command for tests.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// SetSilenceUsage set the SilenceUsage flag on root command for tests.
func (a *App) SetSilenceUsage(silence bool) {
	a.cmd.SilenceUsage = silence
}

// SetOut redirects the output of all commands.
func (a *App) SetOut(w io.Writer) {
	a.cmd.SetOut(w)
}
