package query

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
)

func incidentsProfile(t *testing.T) *dataset.Profile {
	t.Helper()

	profile, err := dataset.FromPreset("police_incidents", "")
	require.NoError(t, err)
	return profile
}

type stubOracle struct {
	offenses map[string][]string
}

func (o *stubOracle) OffensesFor(tag string) []string {
	return o.offenses[tag]
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()

	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestCompileScenario(t *testing.T) {
	t.Helper()

	q := New()
	q.Beats = []string{"241", "242"}
	q.DateRange = &DateRange{
		Start: mustDate(t, "2024-01-01"),
		End:   mustDate(t, "2024-01-31"),
	}
	q.Limit = 500

	params := NewCompiler(incidentsProfile(t), nil, nil).Compile(q)

	want := "beat IN ('241', '242') AND " +
		"date1 >= '2024-01-01T00:00:00.000' AND " +
		"date1 <= '2024-01-31T23:59:59.999'"
	assert.Equal(t, want, params.Where)
	assert.Equal(t, 500, params.Limit)
	assert.Equal(t, 0, params.Offset)
}

func TestCompileDimensionIndependence(t *testing.T) {
	t.Helper()

	oracle := &stubOracle{offenses: map[string][]string{
		"robbery": {"ROBBERY OF BUSINESS", "ROBBERY OF INDIVIDUAL"},
	}}
	profile := incidentsProfile(t)

	tests := []struct {
		name  string
		build func(q *Query)
		want  []string
	}{
		{
			name:  "empty query",
			build: func(*Query) {},
			want:  nil,
		},
		{
			name:  "beats only",
			build: func(q *Query) { q.Beats = []string{"114"} },
			want:  []string{"beat IN ('114')"},
		},
		{
			name:  "division only",
			build: func(q *Query) { q.Division = "CENTRAL" },
			want:  []string{"division = 'CENTRAL'"},
		},
		{
			name:  "nibrs codes",
			build: func(q *Query) { q.NIBRSCodes = []string{"13A", "13B"} },
			want:  []string{"nibrs IN ('13A', '13B')"},
		},
		{
			name:  "nibrs scalars",
			build: func(q *Query) { q.NIBRSType = "A"; q.NIBRSCode = "240" },
			want:  []string{"nibrs_type = 'A'", "nibrs_code = '240'"},
		},
		{
			name:  "ucr offense",
			build: func(q *Query) { q.UCROffense = "BMV" },
			want:  []string{"ucr_offense = 'BMV'"},
		},
		{
			name:  "category via oracle",
			build: func(q *Query) { q.OffenseCategory = "robbery" },
			want: []string{
				"(offincident = 'ROBBERY OF BUSINESS' OR offincident = 'ROBBERY OF INDIVIDUAL')",
			},
		},
		{
			name:  "keyword",
			build: func(q *Query) { q.OffenseKeyword = "theft" },
			want: []string{
				"(upper(offincident) LIKE '%THEFT%' OR upper(ucr_offense) LIKE '%THEFT%')",
			},
		},
		{
			name: "ordering across dimensions",
			build: func(q *Query) {
				q.Division = "CENTRAL"
				q.Beats = []string{"114"}
				q.UCROffense = "BMV"
				q.ExtraWhere = "victim_count > 1"
			},
			want: []string{
				"beat IN ('114')",
				"division = 'CENTRAL'",
				"ucr_offense = 'BMV'",
				"(victim_count > 1)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			tt.build(q)

			params := NewCompiler(profile, oracle, nil).Compile(q)

			if len(tt.want) == 0 {
				assert.Empty(t, params.Where)
				return
			}
			assert.Equal(t, strings.Join(tt.want, " AND "), params.Where)
		})
	}
}

func TestCompileDateInclusivity(t *testing.T) {
	t.Helper()

	q := New()
	q.DateRange = &DateRange{
		Start: mustDate(t, "2024-01-01"),
		End:   mustDate(t, "2024-01-31"),
	}

	params := NewCompiler(incidentsProfile(t), nil, nil).Compile(q)
	assert.Equal(t,
		"date1 >= '2024-01-01T00:00:00.000' AND date1 <= '2024-01-31T23:59:59.999'",
		params.Where)
}

func TestCompileOpenEndedDates(t *testing.T) {
	t.Helper()

	profile := incidentsProfile(t)

	q := New()
	q.DateRange = &DateRange{Start: mustDate(t, "2024-06-01")}
	params := NewCompiler(profile, nil, nil).Compile(q)
	assert.Equal(t, "date1 >= '2024-06-01T00:00:00.000'", params.Where)

	q = New()
	q.DateRange = &DateRange{End: mustDate(t, "2024-06-30")}
	params = NewCompiler(profile, nil, nil).Compile(q)
	assert.Equal(t, "date1 <= '2024-06-30T23:59:59.999'", params.Where)
}

func TestCompileDateDroppedWithoutProfile(t *testing.T) {
	t.Helper()

	q := New()
	q.DateRange = &DateRange{
		Start: mustDate(t, "2024-01-01"),
		End:   mustDate(t, "2024-01-31"),
	}

	params := NewCompiler(nil, nil, nil).Compile(q)
	assert.Empty(t, params.Where)
}

func TestCompileDateDroppedWithoutDatetimeField(t *testing.T) {
	t.Helper()

	profile, err := dataset.FromPreset("active_calls_all", "")
	require.NoError(t, err)

	q := New()
	q.Beats = []string{"241"}
	q.DateRange = &DateRange{Start: mustDate(t, "2024-01-01")}

	params := NewCompiler(profile, nil, nil).Compile(q)
	assert.Equal(t, "beat IN ('241')", params.Where)
}

func TestCompileDivisionDroppedWhenUnmapped(t *testing.T) {
	t.Helper()

	profile, err := dataset.FromPreset("active_calls_northeast", "")
	require.NoError(t, err)

	q := New()
	q.Division = "NORTHEAST"

	params := NewCompiler(profile, nil, nil).Compile(q)
	assert.Empty(t, params.Where)
}

func TestCompileGeoCompleteness(t *testing.T) {
	t.Helper()

	profile := incidentsProfile(t)

	tests := []struct {
		name string
		geo  *GeoQuery
		want string
	}{
		{"all present", &GeoQuery{Latitude: 32.8, Longitude: -96.8, Radius: 500},
			"within_circle(geocoded_column, 32.8, -96.8, 500)"},
		{"missing radius", &GeoQuery{Latitude: 32.8, Longitude: -96.8}, ""},
		{"missing latitude", &GeoQuery{Longitude: -96.8, Radius: 500}, ""},
		{"missing longitude", &GeoQuery{Latitude: 32.8, Radius: 500}, ""},
		{"nil geo", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			q.Geo = tt.geo

			params := NewCompiler(profile, nil, nil).Compile(q)
			assert.Equal(t, tt.want, params.Where)
		})
	}
}

func TestCompileUnknownCategoryDropped(t *testing.T) {
	t.Helper()

	oracle := &stubOracle{offenses: map[string][]string{}}

	q := New()
	q.Beats = []string{"241"}
	q.OffenseCategory = "no_such_tag"

	params := NewCompiler(incidentsProfile(t), oracle, nil).Compile(q)
	assert.Equal(t, "beat IN ('241')", params.Where)
}

func TestCompileNilOracleDropsCategory(t *testing.T) {
	t.Helper()

	q := New()
	q.OffenseCategory = "robbery"

	params := NewCompiler(incidentsProfile(t), nil, nil).Compile(q)
	assert.Empty(t, params.Where)
}

func TestCompileEscapesQuotes(t *testing.T) {
	t.Helper()

	q := New()
	q.UCROffense = "O'BRIEN"

	params := NewCompiler(incidentsProfile(t), nil, nil).Compile(q)
	assert.Equal(t, "ucr_offense = 'O''BRIEN'", params.Where)
}

func TestCompilePaginationDefaults(t *testing.T) {
	t.Helper()

	params := NewCompiler(nil, nil, nil).Compile(&Query{})
	assert.Equal(t, DefaultLimit, params.Limit)
	assert.Equal(t, 0, params.Offset)
}

func TestParamsEncode(t *testing.T) {
	t.Helper()

	params := Params{
		Limit:    500,
		Offset:   100,
		Where:    "beat IN ('241')",
		Order:    "date1 DESC",
		Select:   "beat, offincident",
		FullText: "shooting",
	}

	values := params.Encode()
	assert.Equal(t, "500", values.Get("$limit"))
	assert.Equal(t, "100", values.Get("$offset"))
	assert.Equal(t, "beat IN ('241')", values.Get("$where"))
	assert.Equal(t, "date1 DESC", values.Get("$order"))
	assert.Equal(t, "beat, offincident", values.Get("$select"))
	assert.Equal(t, "shooting", values.Get("$q"))

	empty := Params{Limit: DefaultLimit}.Encode()
	assert.Equal(t, "1000", empty.Get("$limit"))
	assert.False(t, empty.Has("$where"))
	assert.False(t, empty.Has("$order"))
	assert.False(t, empty.Has("$select"))
	assert.False(t, empty.Has("$q"))
}

func TestParseFormat(t *testing.T) {
	t.Helper()

	f, err := ParseFormat("geojson")
	require.NoError(t, err)
	assert.Equal(t, FormatGeoJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
