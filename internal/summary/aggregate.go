// Package summary computes infection counts and statistics over the device table,
// and renders them as narrative text or as a structured document.
package summary

import (
	"cmp"
	"slices"

	"github.com/montanaflynn/stats"
	"github.com/texasbe2trill/ShodanR/internal/devices"
)

// Count is the number of infected devices for one name (country or city).
type Count struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	N    int    `json:"n" yaml:"n" toml:"n"`
}

// PlaceCount is the number of infected devices for one city of one country.
type PlaceCount struct {
	Country string `json:"country" yaml:"country" toml:"country"`
	City    string `json:"city" yaml:"city" toml:"city"`
	N       int    `json:"n" yaml:"n" toml:"n"`
}

// Stats describes the distribution of per-country counts, rounded to 2 decimals.
type Stats struct {
	Mean   float64 `json:"mean" yaml:"mean" toml:"mean"`
	Median float64 `json:"median" yaml:"median" toml:"median"`
	StdDev float64 `json:"stdDev" yaml:"stdDev" toml:"stdDev"`
}

// CountSummary holds every aggregate derived from a device table.
// Count lists are sorted by descending count, then by name.
type CountSummary struct {
	Total     int
	Countries []Count
	Places    []PlaceCount
	// Cities merges same-named cities of different countries.
	Cities []Count
	Stats  Stats

	// TopCountry and TopCity are nil when there are no rows.
	TopCountry Winner
	TopCity    Winner
}

// Aggregate tallies rows by country, by country and city, and by city alone.
func Aggregate(rows []devices.DeviceRow) CountSummary {
	byCountry := make(map[string]int)
	byCity := make(map[string]int)
	byPlace := make(map[[2]string]int)

	for _, r := range rows {
		byCountry[r.Country]++
		byCity[r.City]++
		byPlace[[2]string{r.Country, r.City}]++
	}

	countries := sortedCounts(byCountry)
	cities := sortedCounts(byCity)

	places := make([]PlaceCount, 0, len(byPlace))
	for k, n := range byPlace {
		places = append(places, PlaceCount{Country: k[0], City: k[1], N: n})
	}
	slices.SortFunc(places, func(a, b PlaceCount) int {
		return cmp.Or(
			cmp.Compare(b.N, a.N),
			cmp.Compare(a.Country, b.Country),
			cmp.Compare(a.City, b.City),
		)
	})

	return CountSummary{
		Total:      len(rows),
		Countries:  countries,
		Places:     places,
		Cities:     cities,
		Stats:      describe(countries),
		TopCountry: MostCommon(countries),
		TopCity:    MostCommon(cities),
	}
}

func sortedCounts(m map[string]int) []Count {
	counts := make([]Count, 0, len(m))
	for name, n := range m {
		counts = append(counts, Count{Name: name, N: n})
	}
	slices.SortFunc(counts, func(a, b Count) int {
		return cmp.Or(cmp.Compare(b.N, a.N), cmp.Compare(a.Name, b.Name))
	})
	return counts
}

// describe returns mean, median and sample standard deviation of the counts.
// No counts gives zero values, and a single count has a standard deviation of 0.
func describe(counts []Count) Stats {
	if len(counts) == 0 {
		return Stats{}
	}

	data := make(stats.Float64Data, 0, len(counts))
	for _, c := range counts {
		data = append(data, float64(c.N))
	}

	// Errors are only returned for empty input, handled above.
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	var sd float64
	if len(data) > 1 {
		sd, _ = stats.StandardDeviationSample(data)
	}

	return Stats{
		Mean:   round(mean),
		Median: round(median),
		StdDev: round(sd),
	}
}

func round(f float64) float64 {
	r, err := stats.Round(f, 2)
	if err != nil {
		return f
	}
	return r
}
