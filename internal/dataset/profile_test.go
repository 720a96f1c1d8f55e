package dataset_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
)

func TestFromPreset(t *testing.T) {
	t.Helper()

	tests := []struct {
		name          string
		preset        string
		wantDataset   string
		wantDatetime  string
		wantLocation  string
		wantDivision  string
		hasTimestamps bool
	}{
		{
			name:          "police incidents",
			preset:        "police_incidents",
			wantDataset:   "qv6i-rri7",
			wantDatetime:  "date1",
			wantLocation:  "geocoded_column",
			wantDivision:  "division",
			hasTimestamps: true,
		},
		{
			name:         "active calls northeast",
			preset:       "active_calls_northeast",
			wantDataset:  "juse-v5tw",
			wantLocation: "location",
		},
		{
			name:         "active calls all",
			preset:       "active_calls_all",
			wantDataset:  "9fxf-t2tr",
			wantLocation: "location",
		},
		{
			name:          "preset names are case-insensitive",
			preset:        "POLICE_INCIDENTS",
			wantDataset:   "qv6i-rri7",
			wantDatetime:  "date1",
			wantLocation:  "geocoded_column",
			wantDivision:  "division",
			hasTimestamps: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := dataset.FromPreset(tt.preset, "test-token")
			require.NoError(t, err)

			assert.Equal(t, tt.wantDataset, profile.DatasetID)
			assert.Equal(t, tt.wantDatetime, profile.DatetimeField)
			assert.Equal(t, tt.wantLocation, profile.LocationField)
			assert.Equal(t, tt.wantDivision, profile.DivisionField)
			assert.Equal(t, "beat", profile.BeatField)
			assert.Equal(t, "test-token", profile.AppToken)
			assert.Equal(t, tt.hasTimestamps, profile.SupportsTimestamps())
		})
	}
}

func TestFromPresetUnknownName(t *testing.T) {
	t.Helper()

	_, err := dataset.FromPreset("no_such_dataset", "")
	require.Error(t, err)
	require.ErrorIs(t, err, dataset.ErrUnknownPreset)

	// The error enumerates every valid preset name.
	assert.Contains(t, err.Error(), "police_incidents")
	assert.Contains(t, err.Error(), "active_calls_northeast")
	assert.Contains(t, err.Error(), "active_calls_all")
}

func TestEndpointURL(t *testing.T) {
	t.Helper()

	profile, err := dataset.FromPreset("police_incidents", "")
	require.NoError(t, err)

	assert.Equal(t, "https://www.dallasopendata.com/resource/qv6i-rri7", profile.EndpointURL())
}

func TestLoadProfile(t *testing.T) {
	t.Helper()

	path := writeProfile(t, `
dataset_id: abcd-1234
datetime_field: incident_date
beat_field: patrol_beat
timeout: 15s
name: Custom Feed
`)

	profile, err := dataset.LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "abcd-1234", profile.DatasetID)
	assert.Equal(t, "incident_date", profile.DatetimeField)
	assert.Equal(t, "patrol_beat", profile.BeatField)
	assert.Equal(t, 15*time.Second, profile.Timeout)
	assert.Equal(t, "Custom Feed", profile.Name)

	// Anything the file leaves out falls back to defaults.
	assert.Equal(t, dataset.DefaultDomain, profile.Domain)
	assert.Equal(t, "location", profile.LocationField)
	assert.Empty(t, profile.DivisionField)
}

func TestLoadProfileErrors(t *testing.T) {
	t.Helper()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"missing dataset id", "name: No ID Here\n", dataset.ErrMissingDatasetID},
		{"malformed yaml", "dataset_id: [unclosed\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dataset.LoadProfile(writeProfile(t, tt.content))
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	t.Helper()

	_, err := dataset.LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func writeProfile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
