// Package dataset describes the Dallas Open Data datasets the toolkit can
// query: their identifiers, connection parameters, and which backend fields
// hold each filter dimension. Three presets are built in; custom profiles
// load from YAML files.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Preset identifies a built-in dataset profile.
type Preset string

const (
	// PresetPoliceIncidents is the historical incidents dataset
	// (June 2014 to present, 86 columns including timestamps).
	PresetPoliceIncidents Preset = "police_incidents"

	// PresetActiveCallsNortheast is the real-time Northeast Division feed
	// (5 columns: nature_of_call, unit_number, block, location, beat).
	PresetActiveCallsNortheast Preset = "active_calls_northeast"

	// PresetActiveCallsAll is the real-time feed for all divisions.
	PresetActiveCallsAll Preset = "active_calls_all"
)

// Dataset identifiers on the Dallas Open Data portal.
const (
	datasetPoliceIncidents      = "qv6i-rri7"
	datasetActiveCallsNortheast = "juse-v5tw"
	datasetActiveCallsAll       = "9fxf-t2tr"
)

// Connection defaults.
const (
	DefaultDomain  = "www.dallasopendata.com"
	DefaultTimeout = 30 * time.Second
)

// Field mapping defaults for custom profiles.
const (
	defaultBeatField     = "beat"
	defaultLocationField = "location"
)

// ErrUnknownPreset indicates a preset name that is not one of the built-ins.
var ErrUnknownPreset = errors.New("unknown dataset preset")

// Profile describes one dataset. DatetimeField empty means the dataset has
// no timestamp fields; DivisionField empty disables division filtering.
type Profile struct {
	Domain    string        `mapstructure:"domain"     yaml:"domain"`
	DatasetID string        `mapstructure:"dataset_id" yaml:"dataset_id"`
	AppToken  string        `mapstructure:"app_token"  yaml:"app_token"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`

	DatetimeField string `mapstructure:"datetime_field" yaml:"datetime_field"`
	LocationField string `mapstructure:"location_field" yaml:"location_field"`
	BeatField     string `mapstructure:"beat_field"     yaml:"beat_field"`
	DivisionField string `mapstructure:"division_field" yaml:"division_field"`

	Name        string `mapstructure:"name"        yaml:"name"`
	Description string `mapstructure:"description" yaml:"description"`
}

var presetProfiles = map[Preset]Profile{
	PresetPoliceIncidents: {
		Domain:        DefaultDomain,
		DatasetID:     datasetPoliceIncidents,
		Timeout:       DefaultTimeout,
		DatetimeField: "date1",
		LocationField: "geocoded_column",
		BeatField:     "beat",
		DivisionField: "division",
		Name:          "Police Incidents",
		Description:   "Historical police incidents from June 2014 to present (86 columns)",
	},
	PresetActiveCallsNortheast: {
		Domain:        DefaultDomain,
		DatasetID:     datasetActiveCallsNortheast,
		Timeout:       DefaultTimeout,
		LocationField: "location",
		BeatField:     "beat",
		Name:          "Active Calls - Northeast Division",
		Description:   "Real-time active police calls for Northeast Division (5 columns, updated every few minutes)",
	},
	PresetActiveCallsAll: {
		Domain:        DefaultDomain,
		DatasetID:     datasetActiveCallsAll,
		Timeout:       DefaultTimeout,
		LocationField: "location",
		BeatField:     "beat",
		Name:          "Dallas Police Active Calls",
		Description:   "Real-time active police calls for all Dallas divisions",
	},
}

// Presets returns the built-in preset names in sorted order.
func Presets() []Preset {
	names := make([]Preset, 0, len(presetProfiles))
	for p := range presetProfiles {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// FromPreset builds a Profile from a built-in preset name. The name is
// matched case-insensitively. An unknown name is an error that enumerates
// the valid presets; this is the one configuration mistake that fails fast.
func FromPreset(name string, appToken string) (*Profile, error) {
	profile, ok := presetProfiles[Preset(strings.ToLower(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q, available presets: %s", ErrUnknownPreset, name, presetNames())
	}

	profile.AppToken = appToken
	return &profile, nil
}

func presetNames() string {
	names := Presets()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// EndpointURL returns the SODA resource URL for this dataset.
func (p *Profile) EndpointURL() string {
	return fmt.Sprintf("https://%s/resource/%s", p.Domain, p.DatasetID)
}

// SupportsTimestamps reports whether this dataset has a datetime field.
func (p *Profile) SupportsTimestamps() bool {
	return p.DatetimeField != ""
}

// Info returns a human-readable summary of the profile.
func (p *Profile) Info() string {
	name := p.Name
	if name == "" {
		name = p.DatasetID
	}
	description := p.Description
	if description == "" {
		description = "N/A"
	}
	timestamps := "No"
	if p.SupportsTimestamps() {
		timestamps = "Yes"
	}

	lines := []string{
		"Dataset: " + name,
		"Description: " + description,
		"Endpoint: " + p.EndpointURL(),
		"Timestamp Support: " + timestamps,
	}
	if p.DatetimeField != "" {
		lines = append(lines, "Datetime Field: "+p.DatetimeField)
	}
	return strings.Join(lines, "\n")
}
