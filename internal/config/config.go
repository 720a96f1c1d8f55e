// Package config provides configuration management for the dispatch toolkit.
// It loads YAML files with environment variable overrides; a missing config
// file is not an error, defaults and environment variables apply instead.
package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultEnvironment        = "development"
	defaultLogLevel           = "info"
	defaultDatasetPreset      = "police_incidents"
	defaultDatasetDomain      = "www.dallasopendata.com"
	defaultDatasetTimeout     = 30 * time.Second
	defaultGeocodeCachePath   = "geocode_cache.json"
	defaultGeocodeInterval    = time.Second
	defaultGeocodeCitySuffix  = "Dallas, TX"
	defaultGeocodeUserAgent   = "dpd-dispatch/1.0"
	defaultRedisAddr          = "localhost:6379"
	defaultSeenTTL            = 12 * time.Hour
	defaultWatchInterval      = 60 * time.Second
	defaultServerPort         = 8090
	defaultServerReadTimeout  = 30 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerIdleTimeout  = 60 * time.Second
)

const (
	minPort = 1
	maxPort = 65535
)

// Config holds all configuration for the toolkit.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Logger  LoggerConfig  `yaml:"logger"`
	Dataset DatasetConfig `yaml:"dataset"`
	Geocode GeocodeConfig `yaml:"geocode"`
	Redis   RedisConfig   `yaml:"redis"`
	Watch   WatchConfig   `yaml:"watch"`
	Server  ServerConfig  `yaml:"server"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"APP_ENV"   yaml:"environment"`
	Debug       bool   `env:"APP_DEBUG" yaml:"debug"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level       string `env:"LOG_LEVEL" yaml:"level"`
	Development bool   `yaml:"development"`
}

// DatasetConfig selects and parameterizes the remote dataset.
type DatasetConfig struct {
	// Preset names a built-in dataset profile; ProfileFile, when set,
	// loads a custom profile instead and takes precedence.
	Preset      string        `env:"DATASET_PRESET" yaml:"preset"`
	ProfileFile string        `yaml:"profile_file"`
	Domain      string        `env:"SODA_DOMAIN"    yaml:"domain"`
	AppToken    string        `env:"SODA_APP_TOKEN" yaml:"app_token"`
	Timeout     time.Duration `yaml:"timeout"`
}

// GeocodeConfig holds address geocoding configuration.
type GeocodeConfig struct {
	CachePath    string        `env:"GEOCODE_CACHE_PATH" yaml:"cache_path"`
	RateInterval time.Duration `yaml:"rate_interval"`
	CitySuffix   string        `yaml:"city_suffix"`
	UserAgent    string        `yaml:"user_agent"`
	// BaseURL overrides the Nominatim endpoint, mainly for testing.
	BaseURL string `yaml:"base_url"`
}

// RedisConfig holds Redis configuration for the watch loop's seen-tracker.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"     yaml:"addr"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int           `yaml:"db"`
	SeenTTL  time.Duration `yaml:"seen_ttl"`
}

// WatchConfig holds active-call polling configuration.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Beats    []string      `env:"WATCH_BEATS" yaml:"beats"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	Port         int           `env:"SERVER_PORT" yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Load loads configuration from the specified path, applies defaults, then
// re-applies environment overrides so the environment always wins.
func Load(path string) (*Config, error) {
	cfg, err := loadYAML(path)
	if err != nil {
		return nil, err
	}

	setDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values no command could run with.
func (c *Config) Validate() error {
	if c.Server.Port < minPort || c.Server.Port > maxPort {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", c.Watch.Interval)
	}
	if c.Geocode.RateInterval < 0 {
		return fmt.Errorf("geocode rate interval must not be negative, got %s", c.Geocode.RateInterval)
	}
	return nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	if cfg.App.Environment == "" {
		cfg.App.Environment = defaultEnvironment
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = defaultLogLevel
	}
	setDatasetDefaults(&cfg.Dataset)
	setGeocodeDefaults(&cfg.Geocode)
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaultRedisAddr
	}
	if cfg.Redis.SeenTTL == 0 {
		cfg.Redis.SeenTTL = defaultSeenTTL
	}
	if cfg.Watch.Interval == 0 {
		cfg.Watch.Interval = defaultWatchInterval
	}
	setServerDefaults(&cfg.Server)
}

func setDatasetDefaults(d *DatasetConfig) {
	if d.Preset == "" {
		d.Preset = defaultDatasetPreset
	}
	if d.Domain == "" {
		d.Domain = defaultDatasetDomain
	}
	if d.Timeout == 0 {
		d.Timeout = defaultDatasetTimeout
	}
}

func setGeocodeDefaults(g *GeocodeConfig) {
	if g.CachePath == "" {
		g.CachePath = defaultGeocodeCachePath
	}
	if g.RateInterval == 0 {
		g.RateInterval = defaultGeocodeInterval
	}
	if g.CitySuffix == "" {
		g.CitySuffix = defaultGeocodeCitySuffix
	}
	if g.UserAgent == "" {
		g.UserAgent = defaultGeocodeUserAgent
	}
}

func setServerDefaults(s *ServerConfig) {
	if s.Port == 0 {
		s.Port = defaultServerPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = defaultServerReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = defaultServerWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = defaultServerIdleTimeout
	}
}
