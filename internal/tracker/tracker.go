package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
)

// CallTracker accumulates captured calls and builds follow-up queries
// against the historical dataset. Persistence is a versioned JSON file.
type CallTracker struct {
	Version string        `json:"version"`
	Calls   []TrackedCall `json:"calls"`
}

// NewCallTracker returns an empty tracker.
func NewCallTracker() *CallTracker {
	return &CallTracker{Version: fileVersion}
}

// Track captures one raw active-calls record.
func (t *CallTracker) Track(record map[string]any, notes string, tags []string) TrackedCall {
	call := newTrackedCall(record, notes, tags)
	t.Calls = append(t.Calls, call)
	return call
}

// TrackMultiple captures every record the filter accepts. A nil filter
// accepts everything.
func (t *CallTracker) TrackMultiple(records []map[string]any, filter func(map[string]any) bool, notes string, tags []string) []TrackedCall {
	var tracked []TrackedCall
	for _, record := range records {
		if filter != nil && !filter(record) {
			continue
		}
		tracked = append(tracked, t.Track(record, notes, tags))
	}
	return tracked
}

// FilterByTag returns the calls carrying the tag.
func (t *CallTracker) FilterByTag(tag string) []TrackedCall {
	var matched []TrackedCall
	for _, call := range t.Calls {
		for _, ct := range call.Tags {
			if ct == tag {
				matched = append(matched, call)
				break
			}
		}
	}
	return matched
}

// FilterByBeat returns the calls captured in the beat.
func (t *CallTracker) FilterByBeat(beat string) []TrackedCall {
	var matched []TrackedCall
	for _, call := range t.Calls {
		if call.Beat == beat {
			matched = append(matched, call)
		}
	}
	return matched
}

// Summary aggregates the tracked calls.
type Summary struct {
	Total           int            `json:"total"`
	ByBeat          map[string]int `json:"by_beat"`
	ByNature        map[string]int `json:"by_nature"`
	ByTag           map[string]int `json:"by_tag"`
	EarliestCapture time.Time      `json:"earliest_capture,omitempty"`
	LatestCapture   time.Time      `json:"latest_capture,omitempty"`
}

// Summary computes per-beat, per-nature, and per-tag counts plus the
// capture time span.
func (t *CallTracker) Summary() Summary {
	summary := Summary{
		Total:    len(t.Calls),
		ByBeat:   make(map[string]int),
		ByNature: make(map[string]int),
		ByTag:    make(map[string]int),
	}

	for _, call := range t.Calls {
		summary.ByBeat[call.Beat]++
		summary.ByNature[call.NatureOfCall]++
		for _, tag := range call.Tags {
			summary.ByTag[tag]++
		}
		if summary.EarliestCapture.IsZero() || call.CapturedAt.Before(summary.EarliestCapture) {
			summary.EarliestCapture = call.CapturedAt
		}
		if call.CapturedAt.After(summary.LatestCapture) {
			summary.LatestCapture = call.CapturedAt
		}
	}
	return summary
}

// GenerateQueries builds one historical-dataset query per beat with
// tracked calls. Each query filters on that beat with a date range from
// the beat's earliest capture date to its latest capture date plus
// daysAfter, so every tracked call's search window is covered. Beats are
// emitted in sorted order for deterministic output.
func (t *CallTracker) GenerateQueries(daysAfter, limit int) []*query.Query {
	type window struct {
		start time.Time
		end   time.Time
	}
	windows := make(map[string]window)

	for i := range t.Calls {
		call := &t.Calls[i]
		start, end := call.SearchWindow(daysAfter)

		w, seen := windows[call.Beat]
		if !seen {
			windows[call.Beat] = window{start: start, end: end}
			continue
		}
		if start.Before(w.start) {
			w.start = start
		}
		if end.After(w.end) {
			w.end = end
		}
		windows[call.Beat] = w
	}

	beats := make([]string, 0, len(windows))
	for beat := range windows {
		beats = append(beats, beat)
	}
	sort.Strings(beats)

	queries := make([]*query.Query, 0, len(beats))
	for _, beat := range beats {
		w := windows[beat]
		q := query.New()
		q.Beats = []string{beat}
		q.DateRange = &query.DateRange{Start: w.start, End: w.end}
		if limit > 0 {
			q.Limit = limit
		}
		queries = append(queries, q)
	}
	return queries
}

// Save writes the tracker to a JSON file.
func (t *CallTracker) Save(path string) error {
	t.Version = fileVersion
	return saveJSON(path, t)
}

// LoadCallTracker reads a tracker file. A missing file yields an empty
// tracker; a malformed one is an error.
func LoadCallTracker(path string) (*CallTracker, error) {
	tracker := NewCallTracker()
	if err := loadJSON(path, tracker); err != nil {
		return nil, err
	}
	if tracker.Version == "" {
		tracker.Version = fileVersion
	}
	return tracker, nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
