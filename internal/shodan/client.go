package shodan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/texasbe2trill/ShodanR/internal/devices"
	"github.com/texasbe2trill/ShodanR/internal/fileutils"
	"golang.org/x/time/rate"
)

var (
	// ErrNetwork is returned when the API could not be reached or answered with an unexpected status.
	ErrNetwork = errors.New("network error")
	// ErrAuth is returned when the API rejected the key.
	ErrAuth = errors.New("authentication failed")
	// ErrRateLimit is returned when the API refused the call because of its request rate.
	ErrRateLimit = errors.New("rate limit reached")
	// ErrMalformedResponse is returned when the body is not a search result document.
	ErrMalformedResponse = errors.New("malformed response")
)

// maxErrorBody bounds how much of a failed response body ends up in error messages.
const maxErrorBody = 512

// Client fetches search results, with at most one request in flight and calls spaced by its limiter.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter

	mu sync.Mutex
}

type options struct {
	httpClient *http.Client
	limit      rate.Limit
}

// Option overrides a Client default.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithRateLimit sets the maximum number of requests per second.
func WithRateLimit(l rate.Limit) Option {
	return func(o *options) {
		o.limit = l
	}
}

// New returns a Client limited to one request per second by default.
func New(args ...Option) *Client {
	opts := options{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limit:      rate.Every(time.Second),
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Client{
		httpClient: opts.httpClient,
		limiter:    rate.NewLimiter(opts.limit, 1),
	}
}

type searchResult struct {
	Matches *[]devices.RawRecord `json:"matches"`
	Total   int                  `json:"total"`
	Error   string               `json:"error"`
}

// Fetch runs the search described by req and returns its matches.
//
// Errors wrap one of ErrNetwork, ErrAuth, ErrRateLimit or ErrMalformedResponse. Nothing is retried.
func (c *Client) Fetch(ctx context.Context, req Request) ([]devices.RawRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Join(ErrNetwork, fmt.Errorf("waiting for rate limiter: %v", err))
	}

	u, err := req.Encode()
	if err != nil {
		return nil, errors.Join(ErrNetwork, fmt.Errorf("invalid request URL %q: %v", req.URL, err))
	}

	slog.Debug("Querying search API", "url", req.Redacted())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Join(ErrNetwork, fmt.Errorf("failed to create request: %v", withoutURL(err)))
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Join(ErrNetwork, fmt.Errorf("failed to send HTTP request: %v", withoutURL(err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrNetwork, fmt.Errorf("failed to read response body: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var res searchResult
	if err := fileutils.ParseJSON(bytes.NewReader(body), &res); err != nil {
		return nil, errors.Join(ErrMalformedResponse, err)
	}
	if res.Matches == nil {
		if res.Error != "" {
			return nil, errors.Join(ErrMalformedResponse, fmt.Errorf("API error: %s", res.Error))
		}
		return nil, errors.Join(ErrMalformedResponse, errors.New("no matches array in response"))
	}

	slog.Info("Fetched search results", "matches", len(*res.Matches), "total", res.Total)
	return *res.Matches, nil
}

// withoutURL drops the request URL, which holds the key, from err and returns only its cause.
func withoutURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err
	}
	return err
}

// statusError maps a non 200 answer to its failure class.
func statusError(code int, body []byte) error {
	msg := apiMessage(body)

	var class error
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		class = ErrAuth
	case http.StatusTooManyRequests:
		class = ErrRateLimit
	default:
		class = ErrNetwork
	}

	return errors.Join(class, fmt.Errorf("unexpected status code %d: %s", code, msg))
}

// apiMessage extracts the "error" member of an API answer, or a bounded excerpt of the raw body.
func apiMessage(body []byte) string {
	var res searchResult
	if err := fileutils.ParseJSON(bytes.NewReader(body), &res); err == nil && res.Error != "" {
		return res.Error
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(bytes.TrimSpace(body))
}
