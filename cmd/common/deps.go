// Package common provides shared dependency wiring for command
// implementations.
package common

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GodspeedAgent/dpd-dispatch/internal/config"
	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
	"github.com/GodspeedAgent/dpd-dispatch/internal/geocode"
	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
	"github.com/GodspeedAgent/dpd-dispatch/internal/offense"
	"github.com/GodspeedAgent/dpd-dispatch/internal/soda"
)

// defaultConfigPath is used when neither the --config flag nor the
// CONFIG_PATH environment variable names a file.
const defaultConfigPath = "config.yaml"

// CommandDeps holds common dependencies for all commands.
// Use this instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Logger
}

// Setup loads configuration, applies the persistent flag overrides, and
// builds the logger. Every command calls this first.
func Setup(cmd *cobra.Command) (*CommandDeps, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = config.GetConfigPath(defaultConfigPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	// Flags win over file and environment values.
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.App.Debug = true
	}
	if preset, _ := cmd.Flags().GetString("dataset"); preset != "" {
		cfg.Dataset.Preset = preset
	}
	if token, _ := cmd.Flags().GetString("token"); token != "" {
		cfg.Dataset.AppToken = token
	}

	log, err := logger.NewLogger(cfg.App.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &CommandDeps{Config: cfg, Logger: log}, nil
}

// Close flushes the logger. Commands should defer this after Setup.
func (d *CommandDeps) Close() {
	_ = d.Logger.Sync()
}

// Profile resolves the configured dataset profile: a profile file when one
// is named, a built-in preset otherwise. Connection overrides from the
// dataset config section apply on top.
func (d *CommandDeps) Profile() (*dataset.Profile, error) {
	dc := d.Config.Dataset

	var profile *dataset.Profile
	var err error
	if dc.ProfileFile != "" {
		profile, err = dataset.LoadProfile(dc.ProfileFile)
		if err == nil && dc.AppToken != "" {
			profile.AppToken = dc.AppToken
		}
	} else {
		profile, err = dataset.FromPreset(dc.Preset, dc.AppToken)
	}
	if err != nil {
		return nil, err
	}

	if dc.Domain != "" {
		profile.Domain = dc.Domain
	}
	if dc.Timeout > 0 {
		profile.Timeout = dc.Timeout
	}
	return profile, nil
}

// SodaClient builds a client for the profile with the offense oracle wired
// in, so semantic category filters resolve.
func (d *CommandDeps) SodaClient(profile *dataset.Profile, opts ...soda.Option) *soda.Client {
	opts = append([]soda.Option{soda.WithOracle(offense.NewStaticOracle())}, opts...)
	return soda.NewClient(profile, d.Logger, opts...)
}

// GeocodeCache opens the configured geocode cache file.
func (d *CommandDeps) GeocodeCache() *geocode.Cache {
	return geocode.NewCache(d.Config.Geocode.CachePath, d.Logger)
}

// Geocoder builds the Nominatim-backed geocoder over the cache.
func (d *CommandDeps) Geocoder(cache *geocode.Cache, opts ...geocode.Option) *geocode.Geocoder {
	gc := d.Config.Geocode

	var provOpts []geocode.NominatimOption
	if gc.BaseURL != "" {
		provOpts = append(provOpts, geocode.WithNominatimURL(gc.BaseURL))
	}
	provider := geocode.NewNominatim(gc.UserAgent, d.Logger, provOpts...)

	opts = append([]geocode.Option{
		geocode.WithRateInterval(gc.RateInterval),
		geocode.WithCitySuffix(gc.CitySuffix),
	}, opts...)
	return geocode.NewGeocoder(provider, cache, d.Logger, opts...)
}
