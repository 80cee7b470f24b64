package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/texasbe2trill/ShodanR/internal/pipeline"
	"github.com/texasbe2trill/ShodanR/internal/summary"
)

const textFormat = "text"

func (a *App) installSummarize() error {
	cmd := &cobra.Command{
		Use:   "summarize CSV",
		Short: "Summarize a device table written by a previous scan",
		Long: `Summarize a device table written by a previous scan without querying the API.

The summary is printed as text or encoded as json, yaml or toml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.summarize(args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&a.config.Summarize.Format, "format", "f", textFormat, "output format: text, json, yaml or toml")

	if err := a.bindFlags(cmd, "summarize", map[string]string{"format": "format"}); err != nil {
		return err
	}

	a.cmd.AddCommand(cmd)
	return nil
}

func (a *App) summarize(path string, out io.Writer) error {
	var format summary.Format
	if !strings.EqualFold(strings.TrimSpace(a.config.Summarize.Format), textFormat) {
		f, err := summary.ParseFormat(a.config.Summarize.Format)
		if err != nil {
			return err
		}
		format = f
	}

	res, err := pipeline.Summarize(path)
	if err != nil {
		return err
	}

	if format == "" {
		_, err = fmt.Fprint(out, summary.Narrative(res.Summary))
		return err
	}
	return summary.NewDocument(res.Summary, "", "").Encode(out, format)
}
