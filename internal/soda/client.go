// Package soda executes compiled incident queries against a Socrata SODA
// endpoint and normalizes the response shapes into flat record lists.
package soda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
)

// appTokenHeader carries the Socrata application token. Requests without
// one are legal but rate-limited harder by the backend.
const appTokenHeader = "X-App-Token"

// Fetch modes reported to the metrics recorder.
const (
	modeSingle = "single"
	modePage   = "page"
)

// Recorder receives query telemetry. The metrics package implements it; a
// nil recorder disables reporting.
type Recorder interface {
	RecordQuery(dataset, mode string, duration time.Duration, records int)
}

// Client issues compiled queries against one dataset. All calls are
// synchronous blocking I/O; errors from the backend propagate to the
// caller unmodified in meaning (no retries in this layer).
type Client struct {
	profile    *dataset.Profile
	compiler   *query.Compiler
	httpClient *http.Client
	baseURL    string
	viewsURL   string
	log        logger.Logger
	recorder   Recorder
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the resource endpoint URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithViewsURL overrides the metadata endpoint URL, mainly for tests.
func WithViewsURL(u string) Option {
	return func(c *Client) { c.viewsURL = u }
}

// WithRecorder wires a metrics recorder into the client.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithOracle wires an offense-classification oracle into the compiler.
func WithOracle(o query.Oracle) Option {
	return func(c *Client) { c.compiler = query.NewCompiler(c.profile, o, c.log) }
}

// NewClient creates a client for one dataset profile.
func NewClient(profile *dataset.Profile, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}

	c := &Client{
		profile:    profile,
		httpClient: &http.Client{Timeout: profile.Timeout},
		baseURL:    profile.EndpointURL(),
		viewsURL:   fmt.Sprintf("https://%s/api/views/%s.json", profile.Domain, profile.DatasetID),
		log:        log,
	}
	c.compiler = query.NewCompiler(profile, nil, log)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile renders a query into SODA parameters without executing it.
func (c *Client) Compile(q *query.Query) query.Params {
	return c.compiler.Compile(q)
}

// GetIncidents compiles and executes a single-page fetch, returning up to
// the query's limit of records.
func (c *Client) GetIncidents(ctx context.Context, q *query.Query) (*Response, error) {
	params := c.compiler.Compile(q)

	start := time.Now()
	records, err := c.fetch(ctx, params.Encode(), q.Format)
	if err != nil {
		return nil, err
	}

	c.log.Info("retrieved incidents",
		logger.String("dataset", c.profile.DatasetID),
		logger.Int("count", len(records)))
	if c.recorder != nil {
		c.recorder.RecordQuery(c.profile.DatasetID, modeSingle, time.Since(start), len(records))
	}

	return NewResponse(records, q, q.Format), nil
}

// GetAllIncidents returns a lazy iterator over every record the query
// matches. Limit and offset on the query are ignored; the iterator drives
// its own pagination, one page per Next refill. Stopping early triggers no
// further fetches.
func (c *Client) GetAllIncidents(q *query.Query) *Iterator {
	params := c.compiler.Compile(q)
	return newIterator(c, params, q.Format)
}

// GetGeoJSON forces the GeoJSON shape on the query and executes a
// single-page fetch. This is the one path that mutates a query after
// construction, matching the convenience behavior callers expect.
func (c *Client) GetGeoJSON(ctx context.Context, q *query.Query) (*Response, error) {
	q.Format = query.FormatGeoJSON
	return c.GetIncidents(ctx, q)
}

// GetByBeat fetches incidents for the given beats.
func (c *Client) GetByBeat(ctx context.Context, beats []string, limit int) (*Response, error) {
	q := query.New()
	q.Beats = beats
	if limit > 0 {
		q.Limit = limit
	}
	return c.GetIncidents(ctx, q)
}

// GetByDateRange fetches incidents between two dates, whole days inclusive.
func (c *Client) GetByDateRange(ctx context.Context, start, end time.Time, limit int) (*Response, error) {
	q := query.New()
	q.DateRange = &query.DateRange{Start: start, End: end}
	if limit > 0 {
		q.Limit = limit
	}
	return c.GetIncidents(ctx, q)
}

// GetByLocation fetches incidents within radius meters of a point.
func (c *Client) GetByLocation(ctx context.Context, lat, lon, radius float64, limit int) (*Response, error) {
	q := query.New()
	q.Geo = &query.GeoQuery{Latitude: lat, Longitude: lon, Radius: radius}
	if limit > 0 {
		q.Limit = limit
	}
	return c.GetIncidents(ctx, q)
}

// Search runs a full-text search across the dataset via the $q parameter.
func (c *Client) Search(ctx context.Context, text string, limit int) (*Response, error) {
	q := query.New()
	q.FullText = text
	if limit > 0 {
		q.Limit = limit
	}
	return c.GetIncidents(ctx, q)
}

// SearchByCategory fetches incidents whose offense falls under a semantic
// category tag. An unknown tag compiles to no filter and returns the
// unfiltered page.
func (c *Client) SearchByCategory(ctx context.Context, tag string, limit int) (*Response, error) {
	q := query.New()
	q.OffenseCategory = tag
	if limit > 0 {
		q.Limit = limit
	}
	return c.GetIncidents(ctx, q)
}

// SearchByKeyword fetches incidents whose offense description contains the
// keyword, case-insensitively.
func (c *Client) SearchByKeyword(ctx context.Context, keyword string, limit int) (*Response, error) {
	q := query.New()
	q.OffenseKeyword = keyword
	if limit > 0 {
		q.Limit = limit
	}
	return c.GetIncidents(ctx, q)
}

// GetMetadata fetches the dataset's view metadata.
func (c *Client) GetMetadata(ctx context.Context) (map[string]any, error) {
	body, err := c.get(ctx, c.viewsURL)
	if err != nil {
		return nil, err
	}

	var metadata map[string]any
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return metadata, nil
}

// FieldNames extracts the backend field names from the dataset metadata.
func (c *Client) FieldNames(ctx context.Context) ([]string, error) {
	metadata, err := c.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}

	columns, ok := metadata["columns"].([]any)
	if !ok {
		return nil, nil
	}

	var names []string
	for _, col := range columns {
		column, ok := col.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := column["fieldName"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Close releases idle connections. The owning caller should close the
// client on teardown.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// fetch executes one resource request and normalizes the body to a flat
// record list. A GeoJSON FeatureCollection object is unwrapped to its
// features; a plain JSON array passes through unchanged for any shape.
func (c *Client) fetch(ctx context.Context, values url.Values, format query.OutputFormat) ([]Record, error) {
	endpoint := fmt.Sprintf("%s.%s?%s", c.baseURL, format.Ext(), values.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return normalize(body, format)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.profile.AppToken != "" {
		req.Header.Set(appTokenHeader, c.profile.AppToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newStatusError(resp.StatusCode, body)
	}
	return body, nil
}

// normalize decodes a response body into records. Objects carrying a
// features key under the GeoJSON shape unwrap to the feature list; any
// other object becomes a single record.
func normalize(body []byte, format query.OutputFormat) ([]Record, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		records := make([]Record, 0, len(v))
		for _, item := range v {
			if record, ok := item.(Record); ok {
				records = append(records, record)
			}
		}
		return records, nil

	case map[string]any:
		if format == query.FormatGeoJSON {
			if features, ok := v["features"].([]any); ok {
				records := make([]Record, 0, len(features))
				for _, feature := range features {
					if record, ok := feature.(Record); ok {
						records = append(records, record)
					}
				}
				return records, nil
			}
		}
		return []Record{v}, nil

	default:
		return nil, fmt.Errorf("unexpected response shape %T", raw)
	}
}
