package geocode

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
)

// Point is one resolved coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Cache is a JSON-file-backed address cache. Entries are keyed by the
// exact constructed address string; values are one Point (a geocoded
// point) or two (a line, for intersections). The file format is a flat
// JSON object mapping address to [lat, lon] or [[lat, lon], [lat, lon]],
// safe to inspect, edit, or delete between runs.
//
// The in-memory map is mutex-guarded so one process's goroutines are safe;
// concurrent writers from multiple processes would race on the file. That
// single-process constraint is documented, not fixed.
type Cache struct {
	path string
	log  logger.Logger

	mu      sync.Mutex
	entries map[string][]Point
}

// Stats summarizes the cache contents.
type Stats struct {
	TotalEntries        int    `json:"total_entries"`
	PointEntries        int    `json:"point_entries"`
	IntersectionEntries int    `json:"intersection_entries"`
	Path                string `json:"path"`
}

// NewCache loads the cache file at path. A missing file starts empty; a
// corrupt one is logged as a warning and also starts empty, never fatal.
func NewCache(path string, log logger.Logger) *Cache {
	if log == nil {
		log = logger.NewNopLogger()
	}

	c := &Cache{
		path:    path,
		log:     log,
		entries: make(map[string][]Point),
	}
	c.load()
	return c
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("could not read geocode cache, starting empty",
				logger.String("path", c.path), logger.Error(err))
		}
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		c.log.Warn("corrupt geocode cache, starting empty",
			logger.String("path", c.path), logger.Error(err))
		return
	}

	for address, value := range raw {
		points, err := decodeEntry(value)
		if err != nil {
			c.log.Warn("skipping malformed cache entry",
				logger.String("address", address), logger.Error(err))
			continue
		}
		c.entries[address] = points
	}

	c.log.Debug("loaded geocode cache",
		logger.String("path", c.path), logger.Int("entries", len(c.entries)))
}

// decodeEntry accepts [lat, lon] or [[lat, lon], [lat, lon]].
func decodeEntry(value json.RawMessage) ([]Point, error) {
	var pair [2]float64
	if err := json.Unmarshal(value, &pair); err == nil {
		return []Point{{Lat: pair[0], Lon: pair[1]}}, nil
	}

	var line [2][2]float64
	if err := json.Unmarshal(value, &line); err != nil {
		return nil, fmt.Errorf("neither point nor line: %w", err)
	}
	return []Point{
		{Lat: line[0][0], Lon: line[0][1]},
		{Lat: line[1][0], Lon: line[1][1]},
	}, nil
}

func encodeEntry(points []Point) any {
	if len(points) == 1 {
		return [2]float64{points[0].Lat, points[0].Lon}
	}
	return [2][2]float64{
		{points[0].Lat, points[0].Lon},
		{points[1].Lat, points[1].Lon},
	}
}

// Get returns the cached coordinates for an exact address key.
func (c *Cache) Get(address string) ([]Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	points, ok := c.entries[address]
	if !ok {
		return nil, false
	}
	return append([]Point(nil), points...), true
}

// PutPoint stores a single coordinate and persists the cache. A write
// failure is a warning; the in-memory entry survives.
func (c *Cache) PutPoint(address string, point Point) {
	c.put(address, []Point{point})
}

// PutLine stores a two-point line and persists the cache.
func (c *Cache) PutLine(address string, a, b Point) {
	c.put(address, []Point{a, b})
}

func (c *Cache) put(address string, points []Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[address] = points
	c.saveLocked()
}

// saveLocked persists the cache. Must be called with c.mu held.
func (c *Cache) saveLocked() {
	raw := make(map[string]any, len(c.entries))
	for address, points := range c.entries {
		raw[address] = encodeEntry(points)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		c.log.Warn("could not encode geocode cache", logger.Error(err))
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		c.log.Warn("could not persist geocode cache, keeping in-memory state",
			logger.String("path", c.path), logger.Error(err))
	}
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports entry counts by shape.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{TotalEntries: len(c.entries), Path: c.path}
	for _, points := range c.entries {
		if len(points) == 1 {
			stats.PointEntries++
		} else {
			stats.IntersectionEntries++
		}
	}
	return stats
}

// Clear empties the cache and persists the empty state.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string][]Point)
	c.saveLocked()
}
