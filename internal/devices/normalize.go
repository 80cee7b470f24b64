package devices

import (
	"log/slog"
	"slices"
	"strings"
)

// DeviceRow is one infected host of the output table.
type DeviceRow struct {
	IPAddress       string
	Port            int
	Transport       string
	Service         string
	OperatingSystem string
	Country         string
	CountryCode     string
	City            string
	Longitude       float64
	Latitude        float64
	RansomLetter    string
}

// dropReason names why a record was left out of the table.
type dropReason string

const (
	noLocation    dropReason = "no location"
	noCoordinates dropReason = "no coordinates"
	noRansomText  dropReason = "no screenshot text"
)

// Normalize flattens raw records into device rows, keeping only hosts with a location and
// a non-empty screenshot text, sorted by country. Relative order is kept between rows of
// the same country.
//
// Unusable records are skipped silently: this is a filter, not a schema validator.
func Normalize(records []RawRecord) []DeviceRow {
	rows := make([]DeviceRow, 0, len(records))
	dropped := make(map[dropReason]int)

	for _, rec := range records {
		row, reason, ok := flatten(rec)
		if !ok {
			dropped[reason]++
			continue
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b DeviceRow) int {
		return strings.Compare(a.Country, b.Country)
	})

	slog.Debug("Normalized device records", "records", len(records), "kept", len(rows),
		"noLocation", dropped[noLocation], "noCoordinates", dropped[noCoordinates], "noRansomText", dropped[noRansomText])

	return rows
}

// flatten extracts a DeviceRow from rec, or the reason it can't be used.
func flatten(rec RawRecord) (DeviceRow, dropReason, bool) {
	loc, ok := rec.Object("location")
	if !ok {
		return DeviceRow{}, noLocation, false
	}

	lon, okLon := loc.Number("longitude")
	lat, okLat := loc.Number("latitude")
	if !okLon || !okLat {
		return DeviceRow{}, noCoordinates, false
	}

	text := ransomText(rec)
	if text == "" {
		return DeviceRow{}, noRansomText, false
	}

	ip, _ := rec.IP()
	port, _ := rec.Int("port")

	return DeviceRow{
		IPAddress:       ip,
		Port:            port,
		Transport:       rec.StringOrEmpty("transport"),
		Service:         rec.StringOrEmpty("product"),
		OperatingSystem: rec.StringOrEmpty("os"),
		Country:         loc.StringOrEmpty("country_name"),
		CountryCode:     loc.StringOrEmpty("country_code"),
		City:            loc.StringOrEmpty("city"),
		Longitude:       lon,
		Latitude:        lat,
		RansomLetter:    text,
	}, "", true
}

// ransomText returns the OCR text of the host screenshot, or "" when there is none.
// Line endings are reduced to "\n" so the text reads back unchanged from the device table.
func ransomText(rec RawRecord) string {
	shot, ok := rec.Object("screenshot")
	if !ok {
		return ""
	}
	return strings.ReplaceAll(shot.StringOrEmpty("text"), "\r\n", "\n")
}
