package tracker

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeSnapshot(t *testing.T) {
	t.Helper()

	tracker := NewSnapshotTracker()
	records := []map[string]any{
		activeCall("241", "A ST", "Shooting"),
		activeCall("114", "B ST", "Theft"),
	}

	snapshot := tracker.TakeSnapshot(records, map[string]string{"source": "test"})
	assert.Equal(t, 2, snapshot.Count)
	assert.False(t, snapshot.Timestamp.IsZero())
	assert.Len(t, tracker.Snapshots, 1)
}

func TestAverageAndPeakCounts(t *testing.T) {
	t.Helper()

	tracker := NewSnapshotTracker()
	assert.Zero(t, tracker.AverageCount())
	assert.Zero(t, tracker.PeakCount())

	tracker.TakeSnapshot(make([]map[string]any, 0), nil)
	tracker.TakeSnapshot([]map[string]any{activeCall("241", "A ST", "x"), activeCall("241", "B ST", "y")}, nil)
	tracker.TakeSnapshot([]map[string]any{activeCall("241", "A ST", "x")}, nil)

	assert.InDelta(t, 1.0, tracker.AverageCount(), 1e-9)
	assert.Equal(t, 2, tracker.PeakCount())
}

func TestDurationEstimates(t *testing.T) {
	t.Helper()

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	tracker := NewSnapshotTracker()
	tracker.Snapshots = []Snapshot{
		{
			Timestamp: base,
			Calls: []map[string]any{
				activeCall("241", "A ST", "Shooting"),
				activeCall("114", "B ST", "Theft"),
			},
		},
		{
			Timestamp: base.Add(5 * time.Minute),
			Calls: []map[string]any{
				activeCall("241", "A ST", "Shooting"),
			},
		},
		{
			Timestamp: base.Add(12 * time.Minute),
			Calls: []map[string]any{
				activeCall("241", "A ST", "Shooting"),
				activeCall("999", "C ST", "New Call"),
			},
		},
	}

	estimates := tracker.DurationEstimates()

	// Spanned first..last appearance.
	assert.Equal(t, 12*time.Minute, estimates[CallIdentity("241", "A ST", "Shooting")])

	// Calls seen once are omitted.
	_, ok := estimates[CallIdentity("114", "B ST", "Theft")]
	assert.False(t, ok)
	_, ok = estimates[CallIdentity("999", "C ST", "New Call")]
	assert.False(t, ok)
}

func TestSnapshotTrackerSaveLoadRoundTrip(t *testing.T) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snapshots.json")

	tracker := NewSnapshotTracker()
	tracker.TakeSnapshot([]map[string]any{activeCall("241", "A ST", "Shooting")}, nil)
	require.NoError(t, tracker.Save(path))

	loaded, err := LoadSnapshotTracker(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0", loaded.Version)
	require.Len(t, loaded.Snapshots, 1)
	assert.Equal(t, 1, loaded.Snapshots[0].Count)
}
