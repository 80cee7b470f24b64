// Package commands is the shodanr command line application.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/texasbe2trill/ShodanR/internal/cli"
	"github.com/texasbe2trill/ShodanR/internal/constants"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	// APIKey is the search API credential. It is never logged.
	APIKey string

	Scan      scanConfig
	Summarize summarizeConfig
}

type scanConfig struct {
	Query         string
	Limit         int
	Output        string
	PlotOutput    string
	SummaryOutput string
	SummaryFormat string
	APIURL        string
}

type summarizeConfig struct {
	Format string
}

// LogValue hides the credential when the configuration is logged.
func (c appConfig) LogValue() slog.Value {
	key := ""
	if c.APIKey != "" {
		key = "set"
	}
	return slog.GroupValue(
		slog.Int("verbosity", c.Verbosity),
		slog.Bool("jsonLogs", c.JSONLogs),
		slog.String("apiKey", key),
		slog.Any("scan", c.Scan),
		slog.Any("summarize", c.Summarize),
	)
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{}

	a.cmd = &cobra.Command{
		Use:   constants.CmdName,
		Short: "Map ransomware-infected hosts found by Shodan",
		Long: `Search Shodan for hosts displaying a ransom note, store them as a device table and
report where the infections are.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}
			slog.Info("got app config", "config", a.config)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}
	// The credential only comes from the environment or the configuration file.
	if err := a.viper.BindEnv("apikey", cli.EnvPrefix(constants.CmdName)+"APIKEY", constants.APIKeyEnv); err != nil {
		return nil, err
	}

	if err := a.installScan(); err != nil {
		return nil, err
	}
	if err := a.installSummarize(); err != nil {
		return nil, err
	}
	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")
}

// bindFlags binds each flag of cmd to the viper key under section named after the flag without dashes.
func (a *App) bindFlags(cmd *cobra.Command, section string, keys map[string]string) error {
	for flag, key := range keys {
		if err := a.viper.BindPFlag(section+"."+key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("could not bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// Run executes the command and associated process, returning an error if any.
//
// An interrupt cancels the running command.
func (a App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return a.cmd.ExecuteContext(ctx)
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// RootCmd returns a copy of the root command for the app. Shouldn't be in general necessary apart when running generators.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}
