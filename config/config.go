// Package config loads the service configuration from environment variables
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

const defaultDatabaseURL = "host=localhost port=5432 user=postgres password=postgres dbname=obra sslmode=disable"

type Config struct {
	Store   StoreConfig
	Port    int
	Balance BalanceConfig
	Events  EventsConfig
	Debug   bool
}

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	BoltPath    string
}

type BalanceConfig struct {
	DriftTolerance decimal.Decimal
	CurrencyPlaces int32
}

type EventsConfig struct {
	BufferSize int
}

// Load reads the configuration. A missing .env in the working directory is
// fine; an explicit envPath that cannot be read is not.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("PORT", 5000)
	if err != nil {
		return nil, err
	}
	places, err := parseIntEnv("CURRENCY_PLACES", 0)
	if err != nil {
		return nil, err
	}
	bufferSize, err := parseIntEnv("EVENT_BUFFER_SIZE", 100)
	if err != nil {
		return nil, err
	}
	// the smallest currency unit unless set explicitly
	tolerance, err := parseDecimalEnv("DRIFT_TOLERANCE", decimal.New(1, -int32(places)))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Store: StoreConfig{
			Driver:      getEnvOrDefault("STORE_DRIVER", DriverPostgres),
			DatabaseURL: getEnvOrDefault("DATABASE_URL", defaultDatabaseURL),
			BoltPath:    getEnvOrDefault("BOLT_PATH", "./data/obra.db"),
		},
		Port: port,
		Balance: BalanceConfig{
			DriftTolerance: tolerance,
			CurrencyPlaces: int32(places),
		},
		Events: EventsConfig{
			BufferSize: bufferSize,
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverBolt:
		if c.Store.BoltPath == "" {
			errs = append(errs, errors.New("BOLT_PATH is required for the bolt driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q, want %q or %q", c.Store.Driver, DriverPostgres, DriverBolt))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT: %d", c.Port))
	}
	if c.Balance.DriftTolerance.IsNegative() {
		errs = append(errs, fmt.Errorf("DRIFT_TOLERANCE must not be negative: %s", c.Balance.DriftTolerance))
	}
	if c.Balance.CurrencyPlaces < 0 || c.Balance.CurrencyPlaces > 8 {
		errs = append(errs, fmt.Errorf("CURRENCY_PLACES must be between 0 and 8: %d", c.Balance.CurrencyPlaces))
	}
	if c.Events.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_BUFFER_SIZE must be positive: %d", c.Events.BufferSize))
	}

	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseDecimalEnv(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value for %s: %s", key, value)
	}
	return parsed, nil
}
