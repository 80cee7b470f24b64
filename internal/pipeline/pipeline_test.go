package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/texasbe2trill/ShodanR/internal/devices"
	"github.com/texasbe2trill/ShodanR/internal/pipeline"
	"github.com/texasbe2trill/ShodanR/internal/plot"
	"github.com/texasbe2trill/ShodanR/internal/shodan"
	"github.com/texasbe2trill/ShodanR/internal/summary"
	"github.com/texasbe2trill/ShodanR/internal/testutils"
	"golang.org/x/time/rate"
)

type fakeFetcher struct {
	records []devices.RawRecord
	err     error

	got []shodan.Request
}

func (f *fakeFetcher) Fetch(_ context.Context, req shodan.Request) ([]devices.RawRecord, error) {
	f.got = append(f.got, req)
	return f.records, f.err
}

// scenario holds one device with ransom text in Austin, and one without screenshot.
func scenario() []devices.RawRecord {
	return []devices.RawRecord{
		{
			"ip_str": "1.1.1.1", "port": json.Number("3389"), "transport": "tcp",
			"location": map[string]any{
				"country_name": "US", "country_code": "US", "city": "Austin",
				"longitude": json.Number("-97.74"), "latitude": json.Number("30.27"),
			},
			"screenshot": map[string]any{"text": "pay ransom"},
		},
		{
			"ip_str": "2.2.2.2", "port": json.Number("5900"), "transport": "tcp",
			"location": map[string]any{
				"country_name": "US", "country_code": "US", "city": "Dallas",
				"longitude": json.Number("-96.8"), "latitude": json.Number("32.78"),
			},
		},
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		records       []devices.RawRecord
		withPlot      bool
		summaryFormat string

		wantRows int
	}{
		"Two records, one without screenshot":  {records: scenario(), wantRows: 1},
		"No matches":                           {records: []devices.RawRecord{}, wantRows: 0},
		"With map input":                       {records: scenario(), withPlot: true, wantRows: 1},
		"With JSON summary":                    {records: scenario(), summaryFormat: "json", wantRows: 1},
		"With YAML summary":                    {records: scenario(), summaryFormat: "yaml", wantRows: 1},
		"With TOML summary and map input":      {records: scenario(), withPlot: true, summaryFormat: "toml", wantRows: 1},
		"Empty result with summary and map in": {records: nil, withPlot: true, summaryFormat: "json", wantRows: 0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			cfg := pipeline.Config{
				APIKey:     "secret",
				Query:      "has_screenshot:true",
				Limit:      100,
				OutputPath: filepath.Join(dir, "devices.csv"),
			}
			if tc.withPlot {
				cfg.PlotPath = filepath.Join(dir, "plot.json")
			}
			if tc.summaryFormat != "" {
				cfg.SummaryPath = filepath.Join(dir, "summary."+tc.summaryFormat)
				cfg.SummaryFormat = tc.summaryFormat
			}

			f := &fakeFetcher{records: tc.records}
			res, err := cfg.Run(context.Background(), f)
			require.NoError(t, err, "Run should not return an error")

			require.Len(t, f.got, 1, "Exactly one request should be issued")
			assert.Equal(t, "secret", f.got[0].Params.Get("key"))
			assert.Equal(t, "has_screenshot:true", f.got[0].Params.Get("query"))
			assert.Equal(t, "100", f.got[0].Params.Get("limit"))

			assert.NotEmpty(t, res.RunID, "Run should have an ID")
			require.Len(t, res.Rows, tc.wantRows)
			assert.Equal(t, tc.wantRows, res.Summary.Total)

			rows, err := devices.ReadCSV(cfg.OutputPath)
			require.NoError(t, err, "Device table should be readable")
			assert.Equal(t, res.Rows, rows, "Device table should hold the rows")

			if tc.withPlot {
				data, err := os.ReadFile(cfg.PlotPath)
				require.NoError(t, err, "Map input should be written")
				var in plot.Input
				require.NoError(t, json.Unmarshal(data, &in))
				assert.Equal(t, res.Points, in.Points)
			} else {
				assert.NoFileExists(t, filepath.Join(dir, "plot.json"))
			}

			if tc.summaryFormat != "" {
				assert.FileExists(t, cfg.SummaryPath, "Summary should be written")
			}
		})
	}
}

func TestRunScenario(t *testing.T) {
	t.Parallel()

	cfg := pipeline.Config{Query: "q", Limit: 10, OutputPath: filepath.Join(t.TempDir(), "devices.csv")}
	res, err := cfg.Run(context.Background(), &fakeFetcher{records: scenario()})
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, devices.DeviceRow{
		IPAddress: "1.1.1.1", Port: 3389, Transport: "tcp", Country: "US", CountryCode: "US", City: "Austin",
		Longitude: -97.74, Latitude: 30.27, RansomLetter: "pay ransom",
	}, res.Rows[0])

	assert.Equal(t, []summary.Count{{Name: "US", N: 1}}, res.Summary.Countries)
	assert.InDelta(t, 1, res.Summary.Stats.Mean, 0)
	assert.InDelta(t, 1, res.Summary.Stats.Median, 0)
	assert.InDelta(t, 0, res.Summary.Stats.StdDev, 0)
	assert.Equal(t, summary.SingleWinner{Name: "US", Count: 1}, res.Summary.TopCountry)
	assert.Equal(t, []plot.LocationPoint{{Country: "US", CountryCode: "US", City: "Austin", Longitude: -97.74, Latitude: 30.27, N: 1}}, res.Points)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	fetchErr := errors.Join(shodan.ErrAuth, errors.New("unexpected status code 401"))

	tests := map[string]struct {
		limit         int
		noOutput      bool
		summaryFormat string
		fetchErr      error
		missingDir    bool

		wantErr     error
		wantFetched bool
	}{
		"Error on fetch failure":         {fetchErr: fetchErr, wantErr: shodan.ErrAuth, wantFetched: true},
		"Error on negative limit":        {limit: -1},
		"Error on empty output path":     {noOutput: true},
		"Error on unknown summary":       {summaryFormat: "xml", wantErr: summary.ErrUnknownFormat},
		"Error on unwritable output dir": {missingDir: true, wantFetched: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			cfg := pipeline.Config{
				Query:       "q",
				Limit:       10,
				OutputPath:  filepath.Join(dir, "devices.csv"),
				PlotPath:    filepath.Join(dir, "plot.json"),
				SummaryPath: filepath.Join(dir, "summary"),
			}
			cfg.SummaryFormat = "json"
			if tc.summaryFormat != "" {
				cfg.SummaryFormat = tc.summaryFormat
			}
			if tc.limit != 0 {
				cfg.Limit = tc.limit
			}
			if tc.noOutput {
				cfg.OutputPath = ""
			}
			if tc.missingDir {
				cfg.OutputPath = filepath.Join(dir, "missing", "devices.csv")
			}

			f := &fakeFetcher{records: scenario(), err: tc.fetchErr}
			_, err := cfg.Run(context.Background(), f)
			require.Error(t, err, "Run should return an error")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}
			assert.Equal(t, tc.wantFetched, len(f.got) == 1, "Fetch should only happen with a valid configuration")

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			for _, e := range entries {
				assert.True(t, e.IsDir(), "No output file should be written, found %s", e.Name())
			}
		})
	}
}

func TestRunWithClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": "Please provide a valid API key"}`))
			return
		}
		_, _ = w.Write([]byte(`{"total": 1, "matches": [{"ip_str": "9.9.9.9", "port": 80, "location": {"country_name": "Spain", "country_code": "ES", "city": "Madrid", "longitude": -3.7, "latitude": 40.4}, "screenshot": {"text": "encrypted"}}]}`))
	}))
	t.Cleanup(srv.Close)

	client := shodan.New(shodan.WithRateLimit(rate.Inf))

	dir := t.TempDir()
	cfg := pipeline.Config{APIKey: "good", APIURL: srv.URL, Query: "q", Limit: 1, OutputPath: filepath.Join(dir, "ok.csv")}
	res, err := cfg.Run(context.Background(), client)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Spain", res.Rows[0].Country)

	cfg.APIKey = ""
	cfg.OutputPath = filepath.Join(dir, "ko.csv")
	_, err = cfg.Run(context.Background(), client)
	require.ErrorIs(t, err, shodan.ErrAuth, "Missing key should surface as an authentication error")
	assert.NoFileExists(t, cfg.OutputPath)
}

//nolint:tparallel // Replaces the default logger for the whole process.
func TestRunDoesNotLogAPIKey(t *testing.T) {
	const key = "very-secret-key"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") == "2" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error": "Access denied"}`))
			return
		}
		_, _ = w.Write([]byte(`{"total": 0, "matches": []}`))
	}))
	t.Cleanup(srv.Close)

	h := testutils.NewRecordHandler()
	orig := slog.Default()
	slog.SetDefault(slog.New(h))
	t.Cleanup(func() { slog.SetDefault(orig) })

	client := shodan.New(shodan.WithRateLimit(rate.Inf))
	dir := t.TempDir()
	cfg := pipeline.Config{APIKey: key, APIURL: srv.URL, Query: "q", Limit: 1, OutputPath: filepath.Join(dir, "out.csv")}

	_, err := cfg.Run(context.Background(), client)
	require.NoError(t, err, "Run should not fail")

	cfg.Limit = 2
	_, err = cfg.Run(context.Background(), client)
	require.ErrorIs(t, err, shodan.ErrAuth, "Run should fail on a forbidden search")
	assert.NotContains(t, err.Error(), key, "Error should not contain the API key")

	records := h.Records()
	require.NotEmpty(t, records, "Run should log its progress")
	for _, r := range records {
		assert.NotContains(t, r, key, "Log record should not contain the API key")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := pipeline.Config{Query: "q", Limit: 10, OutputPath: filepath.Join(dir, "devices.csv")}
	want, err := cfg.Run(context.Background(), &fakeFetcher{records: scenario()})
	require.NoError(t, err, "Setup: Run should not return an error")

	got, err := pipeline.Summarize(cfg.OutputPath)
	require.NoError(t, err, "Summarize should not return an error")
	assert.Equal(t, want.Rows, got.Rows)
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, want.Points, got.Points)
	assert.Empty(t, got.RunID, "Offline summaries have no run ID")

	_, err = pipeline.Summarize(filepath.Join(dir, "nope.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
