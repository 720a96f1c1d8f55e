package tracker

import (
	"time"
)

// Snapshot is one timestamped capture of the active-calls dataset.
type Snapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	Count     int               `json:"count"`
	Calls     []map[string]any  `json:"calls"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SnapshotTracker accumulates snapshots over time and derives call volume
// and duration estimates from them.
type SnapshotTracker struct {
	Version   string     `json:"version"`
	Snapshots []Snapshot `json:"snapshots"`
}

// NewSnapshotTracker returns an empty snapshot tracker.
func NewSnapshotTracker() *SnapshotTracker {
	return &SnapshotTracker{Version: fileVersion}
}

// TakeSnapshot captures the current active calls.
func (t *SnapshotTracker) TakeSnapshot(records []map[string]any, metadata map[string]string) Snapshot {
	snapshot := Snapshot{
		Timestamp: time.Now().UTC(),
		Count:     len(records),
		Calls:     records,
		Metadata:  metadata,
	}
	t.Snapshots = append(t.Snapshots, snapshot)
	return snapshot
}

// AverageCount returns the mean call count across snapshots.
func (t *SnapshotTracker) AverageCount() float64 {
	if len(t.Snapshots) == 0 {
		return 0
	}

	total := 0
	for _, snapshot := range t.Snapshots {
		total += snapshot.Count
	}
	return float64(total) / float64(len(t.Snapshots))
}

// PeakCount returns the largest call count seen in any snapshot.
func (t *SnapshotTracker) PeakCount() int {
	peak := 0
	for _, snapshot := range t.Snapshots {
		if snapshot.Count > peak {
			peak = snapshot.Count
		}
	}
	return peak
}

// DurationEstimates estimates how long each call stayed active: the span
// between the first and last snapshot containing it, keyed by the
// beat_location_nature identity. Calls seen in only one snapshot are
// omitted, since a single observation bounds nothing.
func (t *SnapshotTracker) DurationEstimates() map[string]time.Duration {
	type span struct {
		first time.Time
		last  time.Time
		seen  int
	}
	spans := make(map[string]*span)

	for _, snapshot := range t.Snapshots {
		// A call appearing twice within one snapshot counts once.
		inSnapshot := make(map[string]bool)
		for _, record := range snapshot.Calls {
			identity := RecordIdentity(record)
			if inSnapshot[identity] {
				continue
			}
			inSnapshot[identity] = true

			s, ok := spans[identity]
			if !ok {
				spans[identity] = &span{first: snapshot.Timestamp, last: snapshot.Timestamp, seen: 1}
				continue
			}
			s.last = snapshot.Timestamp
			s.seen++
		}
	}

	estimates := make(map[string]time.Duration)
	for identity, s := range spans {
		if s.seen < 2 {
			continue
		}
		estimates[identity] = s.last.Sub(s.first)
	}
	return estimates
}

// Save writes the snapshot tracker to a JSON file.
func (t *SnapshotTracker) Save(path string) error {
	t.Version = fileVersion
	return saveJSON(path, t)
}

// LoadSnapshotTracker reads a snapshot file. A missing file yields an
// empty tracker.
func LoadSnapshotTracker(path string) (*SnapshotTracker, error) {
	tracker := NewSnapshotTracker()
	if err := loadJSON(path, tracker); err != nil {
		return nil, err
	}
	if tracker.Version == "" {
		tracker.Version = fileVersion
	}
	return tracker, nil
}
