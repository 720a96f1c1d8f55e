package soda

import (
	"sort"
	"strings"

	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
)

// Record is one flat tabular row or one GeoJSON feature.
type Record = map[string]any

// offenseField is the field FilterByOffense matches against.
const offenseField = "ucr_offense"

// Response pairs one query's records with the originating query and the
// declared output shape. Count is fixed at construction; the struct is
// treated as immutable afterward, and the derived views never mutate it.
type Response struct {
	Records []Record
	Query   *query.Query
	Format  query.OutputFormat
	Count   int
}

// NewResponse wraps a record list, fixing the count as of this moment.
func NewResponse(records []Record, q *query.Query, format query.OutputFormat) *Response {
	return &Response{
		Records: records,
		Query:   q,
		Format:  format,
		Count:   len(records),
	}
}

// FilterByOffense returns a new Response holding only the records whose
// ucr_offense equals value, case-insensitively. Records with the field
// absent or non-string are excluded. The receiver is left untouched.
func (r *Response) FilterByOffense(value string) *Response {
	want := strings.ToLower(value)

	var matched []Record
	for _, record := range r.Records {
		offense, ok := record[offenseField].(string)
		if !ok {
			continue
		}
		if strings.ToLower(offense) == want {
			matched = append(matched, record)
		}
	}
	return NewResponse(matched, r.Query, r.Format)
}

// UniqueValues returns the sorted distinct string values of the named
// field across all records where it is present. Works on the flat tabular
// shape; GeoJSON records must be flattened by the caller first.
func (r *Response) UniqueValues(field string) []string {
	seen := make(map[string]bool)
	for _, record := range r.Records {
		if value, ok := record[field].(string); ok {
			seen[value] = true
		}
	}

	values := make([]string, 0, len(seen))
	for value := range seen {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}

// HasGeometry reports whether the held records carry geometry, checked by
// the presence of a geometry or geocoded_column key on the first record
// only. A cheap heuristic, deliberately not a scan of every record.
func (r *Response) HasGeometry() bool {
	if len(r.Records) == 0 {
		return false
	}

	first := r.Records[0]
	if _, ok := first["geometry"]; ok {
		return true
	}
	_, ok := first["geocoded_column"]
	return ok
}
