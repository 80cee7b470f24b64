package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is an encoding of the summary document.
type Format string

const (
	// JSON encodes the document as indented JSON.
	JSON Format = "json"
	// YAML encodes the document as YAML.
	YAML Format = "yaml"
	// TOML encodes the document as TOML.
	TOML Format = "toml"
)

// ErrUnknownFormat is returned for an unsupported summary format.
var ErrUnknownFormat = errors.New("unknown summary format")

// ParseFormat returns the Format named s, case insensitively. "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("%w %q, expected one of json, yaml, toml", ErrUnknownFormat, s)
	}
}

// Document is the serializable form of a CountSummary.
type Document struct {
	RunID       string       `json:"runId,omitempty" yaml:"runId,omitempty" toml:"runId,omitempty"`
	Query       string       `json:"query,omitempty" yaml:"query,omitempty" toml:"query,omitempty"`
	Total       int          `json:"total" yaml:"total" toml:"total"`
	TopCountry  *Leaders     `json:"topCountry,omitempty" yaml:"topCountry,omitempty" toml:"topCountry,omitempty"`
	TopCity     *Leaders     `json:"topCity,omitempty" yaml:"topCity,omitempty" toml:"topCity,omitempty"`
	Stats       Stats        `json:"stats" yaml:"stats" toml:"stats"`
	Countries   []Count      `json:"countries" yaml:"countries" toml:"countries"`
	CountryCity []PlaceCount `json:"countryCity" yaml:"countryCity" toml:"countryCity"`
	Cities      []Count      `json:"cities" yaml:"cities" toml:"cities"`
}

// Leaders lists the names sharing the highest count.
type Leaders struct {
	Names []string `json:"names" yaml:"names" toml:"names"`
	N     int      `json:"n" yaml:"n" toml:"n"`
}

// NewDocument converts s for encoding. runID and query are optional metadata.
func NewDocument(s CountSummary, runID, query string) Document {
	return Document{
		RunID:       runID,
		Query:       query,
		Total:       s.Total,
		TopCountry:  newLeaders(s.TopCountry),
		TopCity:     newLeaders(s.TopCity),
		Stats:       s.Stats,
		Countries:   s.Countries,
		CountryCity: s.Places,
		Cities:      s.Cities,
	}
}

func newLeaders(w Winner) *Leaders {
	if w == nil {
		return nil
	}
	names, n := w.Leaders()
	return &Leaders{Names: names, N: n}
}

// Encode writes d to w in format f.
func (d Document) Encode(w io.Writer, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case TOML:
		return toml.NewEncoder(w).Encode(d)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}
