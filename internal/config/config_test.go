package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Helper()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() with missing file: %v", err)
	}

	if cfg.Dataset.Preset != defaultDatasetPreset {
		t.Errorf("Dataset.Preset = %q, want %q", cfg.Dataset.Preset, defaultDatasetPreset)
	}
	if cfg.Dataset.Domain != defaultDatasetDomain {
		t.Errorf("Dataset.Domain = %q, want %q", cfg.Dataset.Domain, defaultDatasetDomain)
	}
	if cfg.Geocode.CachePath != defaultGeocodeCachePath {
		t.Errorf("Geocode.CachePath = %q, want %q", cfg.Geocode.CachePath, defaultGeocodeCachePath)
	}
	if cfg.Geocode.RateInterval != time.Second {
		t.Errorf("Geocode.RateInterval = %s, want 1s", cfg.Geocode.RateInterval)
	}
	if cfg.Watch.Interval != defaultWatchInterval {
		t.Errorf("Watch.Interval = %s, want %s", cfg.Watch.Interval, defaultWatchInterval)
	}
	if cfg.Server.Port != defaultServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, defaultServerPort)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	t.Helper()

	path := writeTestConfig(t, `
app:
  environment: production
dataset:
  preset: active_calls_northeast
  timeout: 10s
geocode:
  cache_path: /tmp/cache.json
  rate_interval: 2s
watch:
  interval: 30s
  beats:
    - "241"
    - "242"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.App.Environment != "production" {
		t.Errorf("App.Environment = %q, want %q", cfg.App.Environment, "production")
	}
	if cfg.Dataset.Preset != "active_calls_northeast" {
		t.Errorf("Dataset.Preset = %q, want %q", cfg.Dataset.Preset, "active_calls_northeast")
	}
	if cfg.Dataset.Timeout != 10*time.Second {
		t.Errorf("Dataset.Timeout = %s, want 10s", cfg.Dataset.Timeout)
	}
	if cfg.Geocode.RateInterval != 2*time.Second {
		t.Errorf("Geocode.RateInterval = %s, want 2s", cfg.Geocode.RateInterval)
	}
	if len(cfg.Watch.Beats) != 2 || cfg.Watch.Beats[0] != "241" {
		t.Errorf("Watch.Beats = %v, want [241 242]", cfg.Watch.Beats)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Helper()

	tests := []struct {
		name   string
		envVar string
		value  string
		check  func(*Config) bool
	}{
		{"app token", "SODA_APP_TOKEN", "secret-token", func(c *Config) bool {
			return c.Dataset.AppToken == "secret-token"
		}},
		{"preset", "DATASET_PRESET", "active_calls_all", func(c *Config) bool {
			return c.Dataset.Preset == "active_calls_all"
		}},
		{"debug true", "APP_DEBUG", "yes", func(c *Config) bool {
			return c.App.Debug
		}},
		{"redis addr", "REDIS_ADDR", "redis:6380", func(c *Config) bool {
			return c.Redis.Addr == "redis:6380"
		}},
		{"beats list", "WATCH_BEATS", "241, 242", func(c *Config) bool {
			return len(c.Watch.Beats) == 2 && c.Watch.Beats[1] == "242"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("env override %s=%q not applied", tt.envVar, tt.value)
			}
		})
	}
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	t.Helper()

	path := writeTestConfig(t, "dataset:\n  app_token: from-file\n")
	t.Setenv("SODA_APP_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Dataset.AppToken != "from-env" {
		t.Errorf("Dataset.AppToken = %q, want env value to win", cfg.Dataset.AppToken)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	t.Helper()

	path := writeTestConfig(t, "dataset: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with malformed YAML should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Helper()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero watch interval", func(c *Config) { c.Watch.Interval = 0 }, true},
		{"negative rate interval", func(c *Config) { c.Geocode.RateInterval = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			setDefaults(&cfg)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}
