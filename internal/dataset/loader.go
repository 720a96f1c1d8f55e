package dataset

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrMissingDatasetID indicates a profile file without a dataset identifier.
var ErrMissingDatasetID = errors.New("profile has no dataset_id")

// LoadProfile reads a custom dataset profile from a YAML file. Connection
// and field-mapping defaults are applied for anything the file leaves out;
// the dataset identifier is the one required key.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profile YAML: %w", err)
	}

	profile, err := convertToProfile(raw)
	if err != nil {
		return nil, err
	}

	if profile.DatasetID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingDatasetID, path)
	}

	applyProfileDefaults(profile)
	return profile, nil
}

// convertToProfile decodes a raw profile map into a Profile struct.
func convertToProfile(raw map[string]any) (*Profile, error) {
	var profile Profile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &profile,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", decodeErr)
	}

	return &profile, nil
}

func applyProfileDefaults(p *Profile) {
	if p.Domain == "" {
		p.Domain = DefaultDomain
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.BeatField == "" {
		p.BeatField = defaultBeatField
	}
	if p.LocationField == "" {
		p.LocationField = defaultLocationField
	}
}
