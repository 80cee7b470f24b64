// Package shodan builds Shodan host search requests and fetches their matches.
package shodan

import (
	"net/url"
	"strconv"

	"github.com/texasbe2trill/ShodanR/internal/constants"
)

// Request describes one host search call.
type Request struct {
	URL    string
	Params url.Values
}

type requestOptions struct {
	baseURL string
}

// RequestOption overrides a Request default.
type RequestOption func(*requestOptions)

// WithBaseURL sets the search endpoint, for instance to target a test server.
func WithBaseURL(u string) RequestOption {
	return func(o *requestOptions) {
		o.baseURL = u
	}
}

// NewRequest builds a search request for query, asking for at most limit matches.
//
// The key is not validated: an empty key makes the API answer with an authentication error.
func NewRequest(apiKey, query string, limit int, opts ...RequestOption) Request {
	o := requestOptions{baseURL: constants.DefaultAPIURL}
	for _, opt := range opts {
		opt(&o)
	}

	params := url.Values{}
	params.Set("key", apiKey)
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))

	return Request{URL: o.baseURL, Params: params}
}

// Encode returns the full request URL.
func (r Request) Encode() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range r.Params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Redacted returns the request URL with the API key masked, suitable for logs.
func (r Request) Redacted() string {
	masked := Request{URL: r.URL, Params: url.Values{}}
	for k, vs := range r.Params {
		masked.Params[k] = vs
	}
	if masked.Params.Has("key") {
		masked.Params.Set("key", "xxxxx")
	}
	s, err := masked.Encode()
	if err != nil {
		return r.URL
	}
	return s
}
