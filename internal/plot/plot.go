// Package plot prepares the location points handed over to the map renderer.
package plot

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"

	"github.com/texasbe2trill/ShodanR/internal/devices"
	"github.com/texasbe2trill/ShodanR/internal/fileutils"
	"github.com/ubuntu/decorate"
)

// LocationPoint is one distinct location with its number of infected devices.
type LocationPoint struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	N           int     `json:"n"`
}

// Range is a closed interval of degrees.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Extent is the visible part of the world map.
type Extent struct {
	Latitude  Range `json:"latitude"`
	Longitude Range `json:"longitude"`
}

// WorldExtent leaves Antarctica out of the visible map.
var WorldExtent = Extent{
	Latitude:  Range{Min: -60, Max: 90},
	Longitude: Range{Min: -180, Max: 180},
}

// Contains reports whether p falls inside the extent.
func (e Extent) Contains(p LocationPoint) bool {
	return p.Latitude >= e.Latitude.Min && p.Latitude <= e.Latitude.Max &&
		p.Longitude >= e.Longitude.Min && p.Longitude <= e.Longitude.Max
}

// Outside counts the devices of points that fall outside the extent and won't show on the map.
func (e Extent) Outside(points []LocationPoint) (n int) {
	for _, p := range points {
		if !e.Contains(p) {
			n += p.N
		}
	}
	return n
}

type locationKey struct {
	countryCode string
	city        string
	longitude   float64
	latitude    float64
}

// BuildPlotInput groups rows by country code, city and coordinates, counting the rows of each group.
// The country name of a point is the one of the first row of its group.
// Points are ordered by country code, city, longitude then latitude.
func BuildPlotInput(rows []devices.DeviceRow) []LocationPoint {
	groups := make(map[locationKey]*LocationPoint)
	for _, r := range rows {
		k := locationKey{r.CountryCode, r.City, r.Longitude, r.Latitude}
		p, ok := groups[k]
		if !ok {
			p = &LocationPoint{
				Country:     r.Country,
				CountryCode: r.CountryCode,
				City:        r.City,
				Longitude:   r.Longitude,
				Latitude:    r.Latitude,
			}
			groups[k] = p
		}
		p.N++
	}

	points := make([]LocationPoint, 0, len(groups))
	for _, p := range groups {
		points = append(points, *p)
	}
	slices.SortFunc(points, func(a, b LocationPoint) int {
		return cmp.Or(
			cmp.Compare(a.CountryCode, b.CountryCode),
			cmp.Compare(a.City, b.City),
			cmp.Compare(a.Longitude, b.Longitude),
			cmp.Compare(a.Latitude, b.Latitude),
		)
	})

	return points
}

// Input is the document read by the map renderer.
type Input struct {
	Extent Extent          `json:"extent"`
	Points []LocationPoint `json:"points"`
}

// Write stores points with the world extent as JSON at path, replacing any existing file.
// It returns the size of the written file.
func Write(path string, points []LocationPoint) (n int64, err error) {
	defer decorate.OnError(&err, "could not write plot input %s", path)

	return fileutils.AtomicWriteFunc(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Input{Extent: WorldExtent, Points: points})
	})
}
