package params

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	if got := DefaultTrackerConfig().ArmingRadiusFeet(); got != 150 {
		t.Errorf("arming radius: want 150, got %v", got)
	}
	if MaxBatchSegments != 11 {
		t.Errorf("max batch segments: want 11, got %d", MaxBatchSegments)
	}
}

func TestConfig_ValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero threshold":   func(c *Config) { c.Tracker.CompletionThresholdFeet = 0 },
		"arming below one": func(c *Config) { c.Tracker.ArmingFactor = 0.5 },
		"unknown policy":   func(c *Config) { c.Router.Policy = "random" },
		"batch too large":  func(c *Config) { c.Router.BatchLimit = 12 },
		"bad base url":     func(c *Config) { c.Directions.BaseURL = "not a url" },
		"influx sans org":  func(c *Config) { c.Influx.URL = "http://localhost:8086"; c.Influx.Bucket = "b" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			t.Log(err)
		})
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "everystreet.yaml")
	data := strings.Join([]string{
		"router:",
		"  policy: batch",
		"  batch_limit: 5",
		"directions:",
		"  timeout: 5s",
		"datadir: " + dir,
	}, "\n")
	if err := os.WriteFile(file, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAPBOX_ACCESS_TOKEN", "pk.test")

	v := viper.New()
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		t.Fatal(err)
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Router.Policy != RoutePolicyBatch || cfg.Router.BatchLimit != 5 {
		t.Errorf("router config not loaded: %+v", cfg.Router)
	}
	if cfg.Directions.Timeout != 5*time.Second {
		t.Errorf("timeout: %v", cfg.Directions.Timeout)
	}
	if !cfg.Directions.HasCredentials() {
		t.Error("expected token from MAPBOX_ACCESS_TOKEN")
	}
	if cfg.Tracker.CompletionThresholdFeet != 100 {
		t.Errorf("default threshold lost: %v", cfg.Tracker.CompletionThresholdFeet)
	}
	if cfg.DataDir != dir {
		t.Errorf("datadir: %q", cfg.DataDir)
	}
}

func TestDirectionsConfig_PlaceholderToken(t *testing.T) {
	c := DefaultDirectionsConfig()
	c.AccessToken = PlaceholderAccessToken
	if c.HasCredentials() {
		t.Error("placeholder token must not count as credentials")
	}
}
