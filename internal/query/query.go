// Package query defines the typed incident query model and its compilation
// into SoQL, the Socrata query language. The model is pure data; the
// compiler renders it into the parameter set the SODA endpoint accepts.
package query

import (
	"fmt"
	"time"
)

// OutputFormat selects the response shape requested from the backend.
type OutputFormat string

const (
	// FormatJSON requests flat tabular JSON records.
	FormatJSON OutputFormat = "json"

	// FormatGeoJSON requests a GeoJSON FeatureCollection; the executor
	// unwraps it to the contained feature list.
	FormatGeoJSON OutputFormat = "geojson"

	// FormatCSV requests comma-separated output.
	FormatCSV OutputFormat = "csv"
)

// Ext returns the resource extension for the format ("json" when unset).
func (f OutputFormat) Ext() string {
	if f == "" {
		return string(FormatJSON)
	}
	return string(f)
}

// ParseFormat matches a format string against the known output formats.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatJSON, FormatGeoJSON, FormatCSV:
		return OutputFormat(s), nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: json, geojson, csv)", s)
	}
}

// DefaultLimit is the page size applied when a query does not set one.
const DefaultLimit = 1000

const dateLayout = "2006-01-02"

// DateRange holds optional start/end calendar dates. Zero values mean
// unset. start <= end is not enforced here; compiled clauses render start
// as >= 00:00:00.000 and end as <= 23:59:59.999 so both days are included
// in full.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// startLiteral renders the inclusive lower bound of the range.
func (r *DateRange) startLiteral() string {
	return r.Start.Format(dateLayout) + "T00:00:00.000"
}

// endLiteral renders the inclusive upper bound of the range.
func (r *DateRange) endLiteral() string {
	return r.End.Format(dateLayout) + "T23:59:59.999"
}

// GeoQuery holds a circular-radius geography filter. It compiles to a
// clause only when latitude, longitude, and radius are all set and
// non-zero; anything less contributes nothing.
type GeoQuery struct {
	Latitude  float64
	Longitude float64
	Radius    float64 // meters
}

// Complete reports whether all three components are present.
func (g *GeoQuery) Complete() bool {
	return g != nil && g.Latitude != 0 && g.Longitude != 0 && g.Radius != 0
}

// Query aggregates every filter dimension of an incident query. All
// dimensions are optional and independently combinable; the compiled
// predicate is the AND of every dimension present. A Query is built by the
// caller and treated as read-only after compilation, except Format, which
// the GeoJSON convenience path overwrites before compiling.
type Query struct {
	Beats     []string
	Division  string
	DateRange *DateRange

	NIBRSCodes         []string
	NIBRSType          string
	NIBRSCrime         string
	NIBRSCrimeCategory string
	NIBRSCode          string
	UCROffense         string

	Geo *GeoQuery

	// OffenseCategory is a semantic tag resolved through the oracle into
	// literal offense strings; OffenseKeyword is matched as a substring
	// against the offense description fields.
	OffenseCategory string
	OffenseKeyword  string

	// FullText is passed through as the SODA $q parameter.
	FullText string

	Limit        int
	Offset       int
	OrderBy      string
	SelectFields []string
	Format       OutputFormat

	// ExtraWhere is AND'ed in verbatim, wrapped in parentheses. Escaping
	// and validity are the caller's responsibility.
	ExtraWhere string
}

// New returns a Query with the default limit and tabular format applied.
func New() *Query {
	return &Query{
		Limit:  DefaultLimit,
		Format: FormatJSON,
	}
}
