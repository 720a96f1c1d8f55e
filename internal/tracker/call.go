// Package tracker persists captured active calls and timestamped snapshots
// as versioned JSON files, and generates follow-up queries against the
// historical dataset.
package tracker

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// fileVersion tags every persisted tracker file.
const fileVersion = "1.0"

// DefaultSearchWindowDays widens a capture date into a follow-up search
// window. Active calls usually appear in the historical dataset within a
// few days.
const DefaultSearchWindowDays = 3

// TrackedCall is one active call captured for follow-up.
type TrackedCall struct {
	ID           string    `json:"id"`
	NatureOfCall string    `json:"nature_of_call"`
	Location     string    `json:"location"`
	Beat         string    `json:"beat"`
	Block        string    `json:"block,omitempty"`
	UnitNumber   string    `json:"unit_number,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
	Notes        string    `json:"notes,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
}

// newTrackedCall builds a call from a raw active-calls record.
func newTrackedCall(record map[string]any, notes string, tags []string) TrackedCall {
	return TrackedCall{
		ID:           uuid.NewString(),
		NatureOfCall: stringField(record, "nature_of_call"),
		Location:     stringField(record, "location"),
		Beat:         stringField(record, "beat"),
		Block:        stringField(record, "block"),
		UnitNumber:   stringField(record, "unit_number"),
		CapturedAt:   time.Now().UTC(),
		Notes:        notes,
		Tags:         tags,
	}
}

// SearchWindow returns the date range to search the historical dataset
// for this call: capture date through capture date plus daysAfter.
func (c *TrackedCall) SearchWindow(daysAfter int) (time.Time, time.Time) {
	if daysAfter <= 0 {
		daysAfter = DefaultSearchWindowDays
	}
	day := c.CapturedAt.Truncate(24 * time.Hour)
	return day, day.AddDate(0, 0, daysAfter)
}

// Identity returns the beat_location_nature identity used to match a call
// across snapshots and in the watch loop's seen-set.
func (c *TrackedCall) Identity() string {
	return CallIdentity(c.Beat, c.Location, c.NatureOfCall)
}

// CallIdentity builds the shared call identity from its components.
func CallIdentity(beat, location, nature string) string {
	return fmt.Sprintf("%s_%s_%s", beat, location, nature)
}

// RecordIdentity extracts the call identity from a raw active-calls record.
func RecordIdentity(record map[string]any) string {
	return CallIdentity(
		stringField(record, "beat"),
		stringField(record, "location"),
		stringField(record, "nature_of_call"))
}

func stringField(record map[string]any, key string) string {
	s, _ := record[key].(string)
	return s
}
