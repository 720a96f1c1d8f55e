package soda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
)

func testProfile(t *testing.T, token string) *dataset.Profile {
	t.Helper()

	profile, err := dataset.FromPreset("police_incidents", token)
	require.NoError(t, err)
	return profile
}

// newTestClient points a client's resource endpoint at an httptest server.
// The server handler receives the full request including compiled SODA
// parameters.
func newTestClient(t *testing.T, token string, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(testProfile(t, token), nil,
		WithBaseURL(server.URL+"/resource/qv6i-rri7"),
		WithHTTPClient(server.Client()))
	t.Cleanup(client.Close)
	return client, server
}

func TestGetIncidentsSinglePage(t *testing.T) {
	t.Helper()

	client, _ := newTestClient(t, "test-token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resource/qv6i-rri7.json", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("$limit"))
		assert.Equal(t, "0", r.URL.Query().Get("$offset"))
		assert.Equal(t, "beat IN ('241')", r.URL.Query().Get("$where"))
		assert.Equal(t, "test-token", r.Header.Get("X-App-Token"))

		fmt.Fprint(w, `[{"beat":"241","ucr_offense":"BMV"},{"beat":"241","ucr_offense":"THEFT"}]`)
	})

	q := query.New()
	q.Beats = []string{"241"}
	q.Limit = 500

	resp, err := client.GetIncidents(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "241", resp.Records[0]["beat"])
}

func TestGetIncidentsOmitsTokenHeaderWhenUnset(t *testing.T) {
	t.Helper()

	client, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["X-App-Token"]
		assert.False(t, present, "token header should be absent without a token")
		fmt.Fprint(w, `[]`)
	})

	_, err := client.GetIncidents(context.Background(), query.New())
	require.NoError(t, err)
}

func TestFeatureCollectionUnwrap(t *testing.T) {
	t.Helper()

	client, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resource/qv6i-rri7.geojson", r.URL.Path)
		fmt.Fprint(w, `{
			"type": "FeatureCollection",
			"features": [
				{"type": "Feature", "geometry": {"type": "Point"}, "properties": {"beat": "241"}},
				{"type": "Feature", "geometry": {"type": "Point"}, "properties": {"beat": "242"}}
			]
		}`)
	})

	resp, err := client.GetGeoJSON(context.Background(), query.New())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, query.FormatGeoJSON, resp.Format)
	assert.True(t, resp.HasGeometry())
}

func TestPlainListPassesThroughForGeoJSON(t *testing.T) {
	t.Helper()

	client, _ := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"beat":"241"}]`)
	})

	q := query.New()
	resp, err := client.GetGeoJSON(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "241", resp.Records[0]["beat"])
}

func TestGetAllIncidentsPaginates(t *testing.T) {
	t.Helper()

	// Three pages: two full, one short. Record values encode their page
	// and index so ordering is verifiable.
	total := pageSize*2 + 50
	client, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		offset, err := strconv.Atoi(r.URL.Query().Get("$offset"))
		require.NoError(t, err)
		limit, err := strconv.Atoi(r.URL.Query().Get("$limit"))
		require.NoError(t, err)
		assert.Equal(t, pageSize, limit)

		var page []Record
		for i := offset; i < offset+limit && i < total; i++ {
			page = append(page, Record{"seq": strconv.Itoa(i)})
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	})

	it := client.GetAllIncidents(query.New())
	records, err := it.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, records, total)
	assert.Equal(t, "0", records[0]["seq"])
	assert.Equal(t, strconv.Itoa(total-1), records[total-1]["seq"])
}

func TestGetAllIncidentsStopsEarlyWithoutFurtherFetches(t *testing.T) {
	t.Helper()

	var fetches int
	client, _ := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		fetches++
		page := make([]Record, pageSize)
		for i := range page {
			page[i] = Record{"seq": strconv.Itoa(i)}
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	})

	it := client.GetAllIncidents(query.New())
	for i := 0; i < 10; i++ {
		_, ok := it.Next(context.Background())
		require.True(t, ok)
	}

	assert.Equal(t, 1, fetches, "consuming within one page should fetch exactly one page")
	assert.NoError(t, it.Err())
}

func TestStatusErrorPropagates(t *testing.T) {
	t.Helper()

	client, _ := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":true,"message":"Invalid SoQL"}`, http.StatusBadRequest)
	})

	_, err := client.GetIncidents(context.Background(), query.New())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Contains(t, statusErr.Body, "Invalid SoQL")
}

func TestSearchSetsFullTextParameter(t *testing.T) {
	t.Helper()

	client, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shooting", r.URL.Query().Get("$q"))
		fmt.Fprint(w, `[]`)
	})

	_, err := client.Search(context.Background(), "shooting", 50)
	require.NoError(t, err)
}

func TestFieldNames(t *testing.T) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/views/qv6i-rri7.json", r.URL.Path)
		fmt.Fprint(w, `{"columns":[{"fieldName":"beat"},{"fieldName":"date1"},{"name":"no field name"}]}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(testProfile(t, ""), nil,
		WithViewsURL(server.URL+"/api/views/qv6i-rri7.json"),
		WithHTTPClient(server.Client()))
	t.Cleanup(client.Close)

	names, err := client.FieldNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"beat", "date1"}, names)
}

type recordedQuery struct {
	dataset string
	mode    string
	records int
}

type stubRecorder struct {
	queries []recordedQuery
}

func (r *stubRecorder) RecordQuery(dataset, mode string, _ time.Duration, records int) {
	r.queries = append(r.queries, recordedQuery{dataset, mode, records})
}

func TestRecorderObservesSinglePageFetch(t *testing.T) {
	t.Helper()

	recorder := &stubRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"beat":"241"},{"beat":"242"}]`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(testProfile(t, ""), nil,
		WithBaseURL(server.URL+"/resource/qv6i-rri7"),
		WithHTTPClient(server.Client()),
		WithRecorder(recorder))
	t.Cleanup(client.Close)

	_, err := client.GetIncidents(context.Background(), query.New())
	require.NoError(t, err)

	require.Len(t, recorder.queries, 1)
	assert.Equal(t, recordedQuery{"qv6i-rri7", "single", 2}, recorder.queries[0])
}
