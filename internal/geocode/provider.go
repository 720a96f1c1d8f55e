package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
)

// DefaultNominatimURL is the public Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Provider resolves a free-text address to a coordinate. found is false
// when the provider has no result; err is reserved for transport and
// decoding failures. Providers do not rate-limit themselves; that is the
// Geocoder's responsibility.
type Provider interface {
	Lookup(ctx context.Context, address string, timeout time.Duration) (Point, bool, error)
}

// Nominatim is a Provider over the Nominatim search API.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        logger.Logger
}

// NominatimOption customizes a Nominatim provider.
type NominatimOption func(*Nominatim)

// WithNominatimURL overrides the endpoint, mainly for tests.
func WithNominatimURL(u string) NominatimOption {
	return func(n *Nominatim) { n.baseURL = u }
}

// WithNominatimHTTPClient replaces the underlying HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(n *Nominatim) { n.httpClient = hc }
}

// NewNominatim creates a Nominatim provider. The user agent identifies the
// tool, which Nominatim's usage policy requires.
func NewNominatim(userAgent string, log logger.Logger, opts ...NominatimOption) *Nominatim {
	if log == nil {
		log = logger.NewNopLogger()
	}

	n := &Nominatim{
		baseURL:    DefaultNominatimURL,
		userAgent:  userAgent,
		httpClient: &http.Client{},
		log:        log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// nominatimResult is one element of the search response array. Nominatim
// returns coordinates as strings.
type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup queries /search with format=json&limit=1. An empty result array
// is a miss, not an error.
func (n *Nominatim) Lookup(ctx context.Context, address string, timeout time.Duration) (Point, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("q", address)
	endpoint := n.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Point{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Point{}, false, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Point{}, false, fmt.Errorf("nominatim returned %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Point{}, false, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return Point{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, false, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, false, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}

	return Point{Lat: lat, Lon: lon}, true, nil
}
