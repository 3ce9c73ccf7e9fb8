package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

var keys = []string{
	"STORE_DRIVER", "DATABASE_URL", "BOLT_PATH", "PORT",
	"DRIFT_TOLERANCE", "CURRENCY_PLACES", "EVENT_BUFFER_SIZE", "DEBUG",
}

// clearEnv blanks every key for the test so a developer's environment does
// not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store.Driver != DriverPostgres {
		t.Errorf("Driver = %q, want %q", cfg.Store.Driver, DriverPostgres)
	}
	if cfg.Port != 5000 {
		t.Errorf("Port = %d, want 5000", cfg.Port)
	}
	if !cfg.Balance.DriftTolerance.Equal(decimal.NewFromInt(1)) {
		t.Errorf("DriftTolerance = %s, want 1", cfg.Balance.DriftTolerance)
	}
	if cfg.Balance.CurrencyPlaces != 0 {
		t.Errorf("CurrencyPlaces = %d, want 0", cfg.Balance.CurrencyPlaces)
	}
	if cfg.Events.BufferSize != 100 {
		t.Errorf("BufferSize = %d, want 100", cfg.Events.BufferSize)
	}
	if cfg.Debug {
		t.Error("Debug should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if got := cfg.Addr(); got != ":5000" {
		t.Errorf("Addr() = %q, want %q", got, ":5000")
	}
}

func TestDriftToleranceDefaultsToSmallestUnit(t *testing.T) {
	tests := []struct {
		places string
		want   string
	}{
		{"0", "1"},
		{"2", "0.01"},
		{"3", "0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.places, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv("CURRENCY_PLACES", tt.places)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if want := decimal.RequireFromString(tt.want); !cfg.Balance.DriftTolerance.Equal(want) {
				t.Errorf("DriftTolerance = %s, want %s", cfg.Balance.DriftTolerance, want)
			}
		})
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	for _, k := range keys {
		// godotenv does not override variables that are already set
		os.Unsetenv(k)
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := "STORE_DRIVER=bolt\nBOLT_PATH=/tmp/obra.db\nPORT=8081\nDRIFT_TOLERANCE=0.5\nCURRENCY_PLACES=2\nDEBUG=true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store.Driver != DriverBolt || cfg.Store.BoltPath != "/tmp/obra.db" {
		t.Errorf("Store = %+v, want bolt at /tmp/obra.db", cfg.Store)
	}
	if cfg.Port != 8081 {
		t.Errorf("Port = %d, want 8081", cfg.Port)
	}
	if !cfg.Balance.DriftTolerance.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("DriftTolerance = %s, want 0.5", cfg.Balance.DriftTolerance)
	}
	if cfg.Balance.CurrencyPlaces != 2 {
		t.Errorf("CurrencyPlaces = %d, want 2", cfg.Balance.CurrencyPlaces)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "PORT", "abc"},
		{"places", "CURRENCY_PLACES", "two"},
		{"buffer", "EVENT_BUFFER_SIZE", "1.5"},
		{"tolerance", "DRIFT_TOLERANCE", "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%q should fail", tt.key, tt.val)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Load with a missing explicit .env should fail")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:   StoreConfig{Driver: DriverBolt, BoltPath: "obra.db"},
			Port:    5000,
			Balance: BalanceConfig{DriftTolerance: decimal.NewFromInt(1)},
			Events:  EventsConfig{BufferSize: 10},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, true},
		{"bolt without path", func(c *Config) { c.Store.BoltPath = "" }, true},
		{"postgres without url", func(c *Config) { c.Store.Driver = DriverPostgres }, true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
		{"negative tolerance", func(c *Config) { c.Balance.DriftTolerance = decimal.NewFromInt(-1) }, true},
		{"too many places", func(c *Config) { c.Balance.CurrencyPlaces = 12 }, true},
		{"empty buffer", func(c *Config) { c.Events.BufferSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
