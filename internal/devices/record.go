// Package devices turns raw Shodan matches into the flat device table and persists it as CSV.
package devices

import (
	"encoding/json"
	"math"
	"net/netip"
	"strconv"
)

// RawRecord is one entry of the API "matches" array, kept as decoded JSON.
//
// Every accessor reports whether the field was present with the expected type, so that callers
// can route absence to row exclusion instead of failing.
type RawRecord map[string]any

// String returns the string value at key. A JSON null or a non-string value is reported as absent.
func (r RawRecord) String(key string) (string, bool) {
	v, ok := r[key].(string)
	return v, ok
}

// StringOrEmpty returns the string at key, or "" when absent.
func (r RawRecord) StringOrEmpty(key string) string {
	v, _ := r.String(key)
	return v
}

// Number returns the numeric value at key.
// Both json.Number (decoder with UseNumber) and float64 (default decoder) are accepted.
func (r RawRecord) Number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns the integer value at key. Non integral numbers are reported as absent.
func (r RawRecord) Int(key string) (int, bool) {
	if n, ok := r[key].(json.Number); ok {
		i, err := strconv.Atoi(string(n))
		return i, err == nil
	}
	f, ok := r.Number(key)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// Object returns the nested object at key.
func (r RawRecord) Object(key string) (RawRecord, bool) {
	switch v := r[key].(type) {
	case map[string]any:
		return RawRecord(v), true
	case RawRecord:
		return v, true
	default:
		return nil, false
	}
}

// IP returns the textual IP address of the record.
// Shodan sends it as "ip_str", and as a 32 bits integer in "ip" for IPv4 hosts.
func (r RawRecord) IP() (string, bool) {
	if s, ok := r.String("ip_str"); ok && s != "" {
		return s, true
	}

	var n uint64
	switch v := r["ip"].(type) {
	case json.Number:
		u, err := strconv.ParseUint(string(v), 10, 32)
		if err != nil {
			return "", false
		}
		n = u
	case float64:
		if v < 0 || v > math.MaxUint32 || v != math.Trunc(v) {
			return "", false
		}
		n = uint64(v)
	default:
		return "", false
	}

	return netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}).String(), true
}
