package geocode

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider resolves from a fixed map and counts lookups per address.
type fakeProvider struct {
	points map[string]Point
	err    error
	calls  map[string]int
}

func newFakeProvider(points map[string]Point) *fakeProvider {
	return &fakeProvider{points: points, calls: make(map[string]int)}
}

func (p *fakeProvider) Lookup(_ context.Context, address string, _ time.Duration) (Point, bool, error) {
	p.calls[address]++
	if p.err != nil {
		return Point{}, false, p.err
	}
	point, ok := p.points[address]
	return point, ok, nil
}

func (p *fakeProvider) totalCalls() int {
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

func newTestGeocoder(t *testing.T, provider Provider) (*Geocoder, *Cache) {
	t.Helper()

	cache := NewCache(filepath.Join(t.TempDir(), "geocode_cache.json"), nil)
	geocoder := NewGeocoder(provider, cache, nil,
		WithRateInterval(time.Millisecond))
	return geocoder, cache
}

func TestConstructAddress(t *testing.T) {
	t.Helper()

	geocoder, _ := newTestGeocoder(t, newFakeProvider(nil))

	tests := []struct {
		name     string
		block    string
		location string
		want     string
	}{
		{"block and street", "9300", "LAKE JUNE RD", "9300 LAKE JUNE RD, Dallas, TX"},
		{"street only", "", "LAKE JUNE RD", "LAKE JUNE RD, Dallas, TX"},
		{"ampersand intersection", "100", "Main St & Elm St", "Main St and Elm St, Dallas, TX"},
		{"slash intersection", "", "Main St / Elm St", "Main St and Elm St, Dallas, TX"},
		{"slash without spaces", "", "Main St/Elm St", "Main St and Elm St, Dallas, TX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, geocoder.ConstructAddress(tt.block, tt.location))
		})
	}
}

func TestGeocodePointCachesResult(t *testing.T) {
	t.Helper()

	address := "9300 LAKE JUNE RD, Dallas, TX"
	provider := newFakeProvider(map[string]Point{
		address: {Lat: 32.7, Lon: -96.7},
	})
	geocoder, cache := newTestGeocoder(t, provider)

	first, found := geocoder.Geocode(context.Background(), address)
	require.True(t, found)
	require.Len(t, first, 1)
	assert.InDelta(t, 32.7, first[0].Lat, 1e-9)

	// Second call must come from cache: one provider call total, identical
	// coordinates.
	second, found := geocoder.Geocode(context.Background(), address)
	require.True(t, found)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls[address])

	points, ok := cache.Get(address)
	require.True(t, ok)
	assert.Equal(t, first, points)
}

func TestGeocodeNotFound(t *testing.T) {
	t.Helper()

	geocoder, cache := newTestGeocoder(t, newFakeProvider(nil))

	_, found := geocoder.Geocode(context.Background(), "NOWHERE ST, Dallas, TX")
	assert.False(t, found)

	// Unresolved lookups are never cached.
	assert.Zero(t, cache.Len())
}

func TestGeocodeProviderErrorIsNotFound(t *testing.T) {
	t.Helper()

	provider := newFakeProvider(nil)
	provider.err = errors.New("connection refused")
	geocoder, _ := newTestGeocoder(t, provider)

	_, found := geocoder.Geocode(context.Background(), "MAIN ST, Dallas, TX")
	assert.False(t, found)
}

func TestIntersectionBothStreetsResolve(t *testing.T) {
	t.Helper()

	c1 := Point{Lat: 32.78, Lon: -96.79}
	c2 := Point{Lat: 32.79, Lon: -96.8}
	provider := newFakeProvider(map[string]Point{
		"Main St, Dallas, TX": c1,
		"Elm St, Dallas, TX":  c2,
	})
	geocoder, cache := newTestGeocoder(t, provider)

	address := geocoder.ConstructAddress("", "Main St & Elm St")
	require.Equal(t, "Main St and Elm St, Dallas, TX", address)

	points, found := geocoder.Geocode(context.Background(), address)
	require.True(t, found)
	assert.Equal(t, []Point{c1, c2}, points)

	// Composite key caches the exact pair; per-street entries exist too.
	cached, ok := cache.Get(address)
	require.True(t, ok)
	assert.Equal(t, []Point{c1, c2}, cached)
	_, ok = cache.Get("Main St, Dallas, TX")
	assert.True(t, ok)
	_, ok = cache.Get("Elm St, Dallas, TX")
	assert.True(t, ok)
}

func TestIntersectionDegradesToPoint(t *testing.T) {
	t.Helper()

	c1 := Point{Lat: 32.78, Lon: -96.79}
	provider := newFakeProvider(map[string]Point{
		"Main St, Dallas, TX": c1,
	})
	geocoder, cache := newTestGeocoder(t, provider)

	points, found := geocoder.Geocode(context.Background(), "Main St and Elm St, Dallas, TX")
	require.True(t, found)
	require.Len(t, points, 1, "degraded intersection must be a single point, not a list")
	assert.Equal(t, c1, points[0])

	cached, ok := cache.Get("Main St and Elm St, Dallas, TX")
	require.True(t, ok)
	assert.Len(t, cached, 1)
}

func TestIntersectionNeitherResolves(t *testing.T) {
	t.Helper()

	geocoder, cache := newTestGeocoder(t, newFakeProvider(nil))

	_, found := geocoder.Geocode(context.Background(), "Main St and Elm St, Dallas, TX")
	assert.False(t, found)
	assert.Zero(t, cache.Len())
}

func TestIntersectionCacheHitSkipsProvider(t *testing.T) {
	t.Helper()

	c1 := Point{Lat: 32.78, Lon: -96.79}
	c2 := Point{Lat: 32.79, Lon: -96.8}
	provider := newFakeProvider(map[string]Point{
		"Main St, Dallas, TX": c1,
		"Elm St, Dallas, TX":  c2,
	})
	geocoder, _ := newTestGeocoder(t, provider)

	address := "Main St and Elm St, Dallas, TX"
	_, found := geocoder.Geocode(context.Background(), address)
	require.True(t, found)
	callsAfterFirst := provider.totalCalls()

	_, found = geocoder.Geocode(context.Background(), address)
	require.True(t, found)
	assert.Equal(t, callsAfterFirst, provider.totalCalls())
}

func TestGeocodeCallsAnnotatesRecords(t *testing.T) {
	t.Helper()

	provider := newFakeProvider(map[string]Point{
		"9300 LAKE JUNE RD, Dallas, TX": {Lat: 32.7, Lon: -96.7},
		"Main St, Dallas, TX":           {Lat: 32.78, Lon: -96.79},
		"Elm St, Dallas, TX":            {Lat: 32.79, Lon: -96.8},
	})
	geocoder, _ := newTestGeocoder(t, provider)

	records := []map[string]any{
		{"block": "9300", "location": "LAKE JUNE RD", "beat": "241"},
		{"location": "Main St & Elm St"},
		{"beat": "242"}, // no location, passes through
		{"location": "UNKNOWN PL"},
	}

	geocoder.GeocodeCalls(context.Background(), records, 0)

	point := records[0]
	assert.Equal(t, "9300 LAKE JUNE RD, Dallas, TX", point["geocoded_address"])
	assert.Equal(t, false, point["is_intersection"])
	assert.InDelta(t, 32.7, point["latitude"].(float64), 1e-9)
	assert.InDelta(t, -96.7, point["longitude"].(float64), 1e-9)

	intersection := records[1]
	assert.Equal(t, true, intersection["is_intersection"])
	coords, ok := intersection["intersection_coords"].([][2]float64)
	require.True(t, ok)
	assert.Len(t, coords, 2)
	_, hasLat := intersection["latitude"]
	assert.False(t, hasLat)

	passthrough := records[2]
	_, annotated := passthrough["geocoded_address"]
	assert.False(t, annotated)

	unresolved := records[3]
	assert.Equal(t, "UNKNOWN PL, Dallas, TX", unresolved["geocoded_address"])
	_, hasLat = unresolved["latitude"]
	assert.False(t, hasLat)
}

func TestCustomCitySuffix(t *testing.T) {
	t.Helper()

	cache := NewCache(filepath.Join(t.TempDir(), "cache.json"), nil)
	geocoder := NewGeocoder(newFakeProvider(nil), cache, nil,
		WithRateInterval(time.Millisecond),
		WithCitySuffix("Garland, TX"))

	assert.Equal(t, "100 MAIN ST, Garland, TX", geocoder.ConstructAddress("100", "MAIN ST"))
}
