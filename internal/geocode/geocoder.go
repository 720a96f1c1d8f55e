// Package geocode resolves free-text Dallas-area addresses, including
// street intersections, to coordinates, with a persistent file cache and
// fixed-interval rate limiting toward the provider.
package geocode

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
)

const (
	// providerTimeout bounds every provider lookup.
	providerTimeout = 10 * time.Second

	// defaultRateInterval spaces provider calls; cache hits are never
	// delayed.
	defaultRateInterval = time.Second

	// defaultCitySuffix completes constructed addresses.
	defaultCitySuffix = "Dallas, TX"

	// intersectionMarker is how a constructed intersection address joins
	// its two streets.
	intersectionMarker = " and "

	// defaultProgressEvery controls batch progress logging.
	defaultProgressEvery = 10
)

// Geocode result labels reported to the metrics recorder.
const (
	resultHit      = "hit"
	resultMiss     = "miss"
	resultNotFound = "notfound"
	resultError    = "error"
)

// Recorder receives geocode telemetry. A nil recorder disables reporting.
type Recorder interface {
	RecordGeocode(result string)
	SetCacheEntries(n int)
}

// Geocoder maps addresses to coordinates, cache first, provider on miss.
// Provider failures for a single address are logged and reported as not
// found; they never abort a batch and never propagate as errors.
type Geocoder struct {
	provider Provider
	cache    *Cache
	log      logger.Logger
	limiter  *rate.Limiter
	suffix   string
	recorder Recorder
}

// Option customizes a Geocoder.
type Option func(*Geocoder)

// WithRateInterval changes the spacing between provider calls.
func WithRateInterval(interval time.Duration) Option {
	return func(g *Geocoder) {
		g.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithCitySuffix changes the city/state suffix appended to constructed
// addresses.
func WithCitySuffix(suffix string) Option {
	return func(g *Geocoder) { g.suffix = suffix }
}

// WithGeocodeRecorder wires a metrics recorder in.
func WithGeocodeRecorder(r Recorder) Option {
	return func(g *Geocoder) { g.recorder = r }
}

// NewGeocoder creates a geocoder over a provider and a cache.
func NewGeocoder(provider Provider, cache *Cache, log logger.Logger, opts ...Option) *Geocoder {
	if log == nil {
		log = logger.NewNopLogger()
	}

	g := &Geocoder{
		provider: provider,
		cache:    cache,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(defaultRateInterval), 1),
		suffix:   defaultCitySuffix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ConstructAddress builds the full lookup address from a block number and
// a location string. A location containing "/" or "&" is an intersection:
// both separators become the word "and" and the block number is ignored.
// Otherwise the block number, when present, prefixes the street name. The
// city/state suffix is always appended.
func (g *Geocoder) ConstructAddress(block, location string) string {
	location = strings.TrimSpace(location)

	if strings.ContainsAny(location, "/&") {
		replaced := strings.NewReplacer("/", " and ", "&", " and ").Replace(location)
		return collapseSpaces(replaced) + ", " + g.suffix
	}

	block = strings.TrimSpace(block)
	if block != "" {
		return block + " " + location + ", " + g.suffix
	}
	return location + ", " + g.suffix
}

// Geocode resolves an already-constructed address. The result is one Point
// for ordinary addresses, two for a fully-resolved intersection, one for a
// degraded intersection. found is false when nothing resolved.
func (g *Geocoder) Geocode(ctx context.Context, address string) ([]Point, bool) {
	if strings.Contains(address, intersectionMarker) {
		return g.geocodeIntersection(ctx, address)
	}

	point, found := g.geocodePoint(ctx, address)
	if !found {
		return nil, false
	}
	return []Point{point}, true
}

// geocodePoint resolves a single address: exact-key cache lookup first,
// provider on miss. A successful provider call caches the result, persists
// the cache, and then waits one rate-limit interval.
func (g *Geocoder) geocodePoint(ctx context.Context, address string) (Point, bool) {
	if points, ok := g.cache.Get(address); ok && len(points) == 1 {
		g.log.Debug("geocode cache hit", logger.String("address", address))
		g.record(resultHit)
		return points[0], true
	}
	g.record(resultMiss)

	point, found, err := g.provider.Lookup(ctx, address, providerTimeout)
	if err != nil {
		g.log.Error("geocode lookup failed",
			logger.String("address", address), logger.Error(err))
		g.record(resultError)
		return Point{}, false
	}
	if !found {
		g.log.Debug("address not found", logger.String("address", address))
		g.record(resultNotFound)
		return Point{}, false
	}

	g.cache.PutPoint(address, point)
	g.updateCacheGauge()

	if err := g.limiter.Wait(ctx); err != nil {
		g.log.Debug("rate limit wait interrupted", logger.Error(err))
	}
	return point, true
}

// geocodeIntersection resolves a two-street intersection address. Both
// streets resolving yields a two-point line; exactly one yields a degraded
// single point with a warning; neither is not found. The composite address
// is cached under its exact key either way, and each street consults and
// populates the cache under its own suffixed address.
func (g *Geocoder) geocodeIntersection(ctx context.Context, address string) ([]Point, bool) {
	if points, ok := g.cache.Get(address); ok {
		g.log.Debug("geocode cache hit", logger.String("address", address))
		g.record(resultHit)
		return points, true
	}

	streets := g.splitIntersection(address)
	if len(streets) != 2 {
		g.log.Warn("malformed intersection address",
			logger.String("address", address),
			logger.Int("parts", len(streets)))
		return nil, false
	}

	var resolved []Point
	for _, street := range streets {
		streetAddress := street + ", " + g.suffix
		if point, found := g.geocodePoint(ctx, streetAddress); found {
			resolved = append(resolved, point)
		}
	}

	switch len(resolved) {
	case 2:
		g.cache.PutLine(address, resolved[0], resolved[1])
		g.updateCacheGauge()
		return resolved, true
	case 1:
		g.log.Warn("intersection partially resolved, degrading to point",
			logger.String("address", address))
		g.cache.PutPoint(address, resolved[0])
		g.updateCacheGauge()
		return resolved, true
	default:
		g.log.Debug("intersection not found", logger.String("address", address))
		return nil, false
	}
}

// splitIntersection strips the city/state suffix off a constructed
// intersection address and splits the remainder on the intersection marker.
func (g *Geocoder) splitIntersection(address string) []string {
	streets := strings.TrimSuffix(address, ", "+g.suffix)

	parts := strings.Split(streets, intersectionMarker)
	trimmed := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return trimmed
}

// Record keys read from and written to call records during batch
// annotation.
const (
	recordBlockKey        = "block"
	recordLocationKey     = "location"
	recordAddressKey      = "geocoded_address"
	recordIntersectionKey = "is_intersection"
	recordLatitudeKey     = "latitude"
	recordLongitudeKey    = "longitude"
	recordCoordsKey       = "intersection_coords"
)

// GeocodeCalls annotates each call record that has a location field with
// its constructed address, an intersection flag, and either a lat/lon pair
// or a two-point coordinate list. Records without a location pass through
// unannotated. A single failed address never aborts the batch. Progress is
// logged every progressEvery records; pass 0 for the default, negative to
// disable.
func (g *Geocoder) GeocodeCalls(ctx context.Context, records []map[string]any, progressEvery int) {
	if progressEvery == 0 {
		progressEvery = defaultProgressEvery
	}

	for i, record := range records {
		if progressEvery > 0 && i > 0 && i%progressEvery == 0 {
			g.log.Info("geocoding progress",
				logger.Int("done", i), logger.Int("total", len(records)))
		}

		location, ok := record[recordLocationKey].(string)
		if !ok || strings.TrimSpace(location) == "" {
			g.log.Debug("call record has no location, skipping",
				logger.Int("index", i))
			continue
		}
		block, _ := record[recordBlockKey].(string)

		address := g.ConstructAddress(block, location)
		record[recordAddressKey] = address
		record[recordIntersectionKey] = strings.Contains(address, intersectionMarker)

		points, found := g.Geocode(ctx, address)
		if !found {
			continue
		}

		if len(points) == 2 {
			record[recordCoordsKey] = [][2]float64{
				{points[0].Lat, points[0].Lon},
				{points[1].Lat, points[1].Lon},
			}
		} else {
			record[recordLatitudeKey] = points[0].Lat
			record[recordLongitudeKey] = points[0].Lon
		}
	}
}

func (g *Geocoder) record(result string) {
	if g.recorder != nil {
		g.recorder.RecordGeocode(result)
	}
}

func (g *Geocoder) updateCacheGauge() {
	if g.recorder != nil {
		g.recorder.SetCacheEntries(g.cache.Len())
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
