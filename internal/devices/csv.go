package devices

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/texasbe2trill/ShodanR/internal/fileutils"
	"github.com/ubuntu/decorate"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Header is the column header of the device table file, in column order.
var Header = []string{
	"IPAddress",
	"Port",
	"Transport",
	"Service",
	"OperatingSystem",
	"Country",
	"CountryCode",
	"City",
	"Longitude",
	"Latitude",
	"RansomLetter",
}

// ErrInvalidHeader is returned when a device table file does not start with Header.
var ErrInvalidHeader = errors.New("invalid device table header")

// WriteCSV writes rows to path as comma separated values, replacing any existing file.
// It returns the size of the written file.
func WriteCSV(path string, rows []DeviceRow) (n int64, err error) {
	defer decorate.OnError(&err, "could not write device table %s", path)

	return fileutils.AtomicWriteFunc(path, func(w io.Writer) error {
		return EncodeCSV(w, rows)
	})
}

// EncodeCSV writes the header and rows to w.
func EncodeCSV(w io.Writer, rows []DeviceRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a device table written by WriteCSV.
// A leading byte order mark, as added by some spreadsheet tools, is ignored.
func ReadCSV(path string) (rows []DeviceRow, err error) {
	defer decorate.OnError(&err, "could not read device table %s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeCSV(f)
}

// DecodeCSV parses a device table from r.
func DecodeCSV(r io.Reader) ([]DeviceRow, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrInvalidHeader
	}
	if err != nil {
		return nil, err
	}
	if !slices.Equal(head, Header) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, head)
	}

	rows := []DeviceRow{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		row, err := parseRecord(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (r DeviceRow) record() []string {
	return []string{
		r.IPAddress,
		strconv.Itoa(r.Port),
		r.Transport,
		r.Service,
		r.OperatingSystem,
		r.Country,
		r.CountryCode,
		r.City,
		strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		strconv.FormatFloat(r.Latitude, 'f', -1, 64),
		r.RansomLetter,
	}
}

func parseRecord(rec []string) (DeviceRow, error) {
	port, err := strconv.Atoi(rec[1])
	if err != nil {
		return DeviceRow{}, fmt.Errorf("invalid port %q: %v", rec[1], err)
	}
	lon, err := strconv.ParseFloat(rec[8], 64)
	if err != nil {
		return DeviceRow{}, fmt.Errorf("invalid longitude %q: %v", rec[8], err)
	}
	lat, err := strconv.ParseFloat(rec[9], 64)
	if err != nil {
		return DeviceRow{}, fmt.Errorf("invalid latitude %q: %v", rec[9], err)
	}

	return DeviceRow{
		IPAddress:       rec[0],
		Port:            port,
		Transport:       rec[2],
		Service:         rec[3],
		OperatingSystem: rec[4],
		Country:         rec[5],
		CountryCode:     rec[6],
		City:            rec[7],
		Longitude:       lon,
		Latitude:        lat,
		RansomLetter:    rec[10],
	}, nil
}
