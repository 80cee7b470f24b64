// Package pipeline runs the search, normalization and aggregation stages in order
// and writes their outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/texasbe2trill/ShodanR/internal/devices"
	"github.com/texasbe2trill/ShodanR/internal/fileutils"
	"github.com/texasbe2trill/ShodanR/internal/plot"
	"github.com/texasbe2trill/ShodanR/internal/shodan"
	"github.com/texasbe2trill/ShodanR/internal/summary"
	"github.com/ubuntu/decorate"
)

// Fetcher retrieves the raw matches of a search request.
type Fetcher interface {
	Fetch(ctx context.Context, req shodan.Request) ([]devices.RawRecord, error)
}

// Config represents the inputs of one pipeline run.
type Config struct {
	// APIKey is passed as is to the API.
	APIKey string
	// APIURL overrides the search endpoint when not empty.
	APIURL string
	Query  string
	Limit  int

	// OutputPath receives the device table. It is required.
	OutputPath string
	// PlotPath receives the map input when not empty.
	PlotPath string
	// SummaryPath receives the summary document when not empty, encoded as SummaryFormat.
	SummaryPath   string
	SummaryFormat string
}

// Result holds everything a run produced.
type Result struct {
	RunID   string
	Rows    []devices.DeviceRow
	Summary summary.CountSummary
	Points  []plot.LocationPoint
}

// Run fetches the search results and derives the device table, the summary and the map input.
//
// A fetch failure is returned before any file is written.
func (c Config) Run(ctx context.Context, f Fetcher) (res Result, err error) {
	runID := uuid.NewString()
	log := slog.With("run", runID)
	defer decorate.OnError(&err, "scan failed")

	format, err := c.validate()
	if err != nil {
		return Result{}, err
	}

	var opts []shodan.RequestOption
	if c.APIURL != "" {
		opts = append(opts, shodan.WithBaseURL(c.APIURL))
	}
	req := shodan.NewRequest(c.APIKey, c.Query, c.Limit, opts...)

	log.Info("Fetching search results", "query", c.Query, "limit", c.Limit)
	records, err := f.Fetch(ctx, req)
	if err != nil {
		return Result{}, err
	}

	res = derive(records)
	res.RunID = runID
	log.Info("Normalized search results", "matches", len(records), "devices", len(res.Rows))

	if err := c.write(log, res, format); err != nil {
		return Result{}, err
	}

	return res, nil
}

// Summarize reloads a device table written by a previous run and recomputes its aggregates.
func Summarize(path string) (res Result, err error) {
	defer decorate.OnError(&err, "summarize failed")

	rows, err := devices.ReadCSV(path)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Rows:    rows,
		Summary: summary.Aggregate(rows),
		Points:  plot.BuildPlotInput(rows),
	}, nil
}

func (c Config) validate() (summary.Format, error) {
	if c.Limit <= 0 {
		return "", fmt.Errorf("limit must be a positive integer, got %d", c.Limit)
	}
	if c.OutputPath == "" {
		return "", errors.New("output path cannot be empty")
	}
	if c.SummaryPath == "" {
		return "", nil
	}
	return summary.ParseFormat(c.SummaryFormat)
}

func derive(records []devices.RawRecord) Result {
	rows := devices.Normalize(records)
	return Result{
		Rows:    rows,
		Summary: summary.Aggregate(rows),
		Points:  plot.BuildPlotInput(rows),
	}
}

// write stores the device table, then the optional map input and summary document.
func (c Config) write(log *slog.Logger, res Result, format summary.Format) error {
	n, err := devices.WriteCSV(c.OutputPath, res.Rows)
	if err != nil {
		return err
	}
	log.Info("Device table written", "file", c.OutputPath, "rows", len(res.Rows), "size", humanize.Bytes(uint64(n)))

	if c.PlotPath != "" {
		n, err := plot.Write(c.PlotPath, res.Points)
		if err != nil {
			return err
		}
		log.Info("Map input written", "file", c.PlotPath, "points", len(res.Points), "size", humanize.Bytes(uint64(n)))
		if hidden := plot.WorldExtent.Outside(res.Points); hidden > 0 {
			log.Warn("Some devices are outside the map extent", "devices", hidden)
		}
	}

	if c.SummaryPath != "" {
		doc := summary.NewDocument(res.Summary, res.RunID, c.Query)
		n, err := fileutils.AtomicWriteFunc(c.SummaryPath, func(w io.Writer) error {
			return doc.Encode(w, format)
		})
		if err != nil {
			return fmt.Errorf("could not write summary %s: %w", c.SummaryPath, err)
		}
		log.Info("Summary written", "file", c.SummaryPath, "format", format, "size", humanize.Bytes(uint64(n)))
	}

	return nil
}
