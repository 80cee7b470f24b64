package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/texasbe2trill/ShodanR/internal/constants"
	"github.com/texasbe2trill/ShodanR/internal/pipeline"
	"github.com/texasbe2trill/ShodanR/internal/shodan"
	"github.com/texasbe2trill/ShodanR/internal/summary"
)

func (a *App) installScan() error {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Search for ransomware-infected hosts and write the device table",
		Long: `Search Shodan for hosts whose screenshot shows a ransom note, write them as a CSV
device table and print a summary of where they are.

The API key is read from the ` + constants.APIKeyEnv + ` environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scan(cmd.Context(), cmd.OutOrStdout())
		},
	}

	c := &a.config.Scan
	cmd.Flags().StringVarP(&c.Query, "query", "q", constants.DefaultQuery, "search query")
	cmd.Flags().IntVarP(&c.Limit, "limit", "l", constants.DefaultLimit, "maximum number of results to request")
	cmd.Flags().StringVarP(&c.Output, "output", "o", constants.DefaultOutputFile, "device table CSV file")
	cmd.Flags().StringVar(&c.PlotOutput, "plot-output", "", "write the map input as JSON to this file")
	cmd.Flags().StringVar(&c.SummaryOutput, "summary-output", "", "write the summary to this file")
	cmd.Flags().StringVar(&c.SummaryFormat, "summary-format", constants.DefaultSummaryFormat, "summary file format: json, yaml or toml")
	cmd.Flags().StringVar(&c.APIURL, "api-url", constants.DefaultAPIURL, "search endpoint")

	for _, f := range []string{"output", "plot-output", "summary-output"} {
		if err := cmd.MarkFlagFilename(f); err != nil {
			return fmt.Errorf("failed to mark %s flag as filename: %w", f, err)
		}
	}

	if err := a.bindFlags(cmd, "scan", map[string]string{
		"query":          "query",
		"limit":          "limit",
		"output":         "output",
		"plot-output":    "plotoutput",
		"summary-output": "summaryoutput",
		"summary-format": "summaryformat",
		"api-url":        "apiurl",
	}); err != nil {
		return err
	}

	a.cmd.AddCommand(cmd)
	return nil
}

func (a *App) scan(ctx context.Context, out io.Writer) error {
	if a.config.APIKey == "" {
		slog.Warn("No API key set, the search will be rejected", "env", constants.APIKeyEnv)
	}

	c := a.config.Scan
	res, err := pipeline.Config{
		APIKey:        a.config.APIKey,
		APIURL:        c.APIURL,
		Query:         c.Query,
		Limit:         c.Limit,
		OutputPath:    c.Output,
		PlotPath:      c.PlotOutput,
		SummaryPath:   c.SummaryOutput,
		SummaryFormat: c.SummaryFormat,
	}.Run(ctx, shodan.New())
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(out, summary.Narrative(res.Summary))
	return err
}
