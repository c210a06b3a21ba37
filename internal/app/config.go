package app

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/goroute/core/config"
	coredatabase "github.com/m3rciful/goroute/core/database"
	"github.com/m3rciful/goroute/internal/httpapi"
	"github.com/m3rciful/goroute/internal/layout"
	"github.com/m3rciful/goroute/internal/payment"
	"github.com/m3rciful/goroute/internal/reservation"
	"github.com/m3rciful/goroute/internal/tracking"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// RedisConfig enables the cross-process tick lease when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// Config is the full service configuration. The core part is inlined so
// the YAML keeps telegram, webhook and logging at the top level.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database    coredatabase.Config `yaml:"database"`
	Storage     StorageConfig       `yaml:"storage"`
	Payment     payment.Config      `yaml:"payment" envconfig:"PAYMENT"`
	Reservation reservation.Config  `yaml:"reservation"`
	Tracking    tracking.Config     `yaml:"tracking" envconfig:"TRACKING"`
	HTTP        httpapi.Config      `yaml:"http" envconfig:"HTTP"`
	Redis       RedisConfig         `yaml:"redis"`
	Layouts     []layout.Config     `yaml:"layouts" ignored:"true"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// LoadConfig reads the YAML file at path, applies environment overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the service sections on top of the core ones.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch driver {
	case "":
		driver = StoragePostgres
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", c.Storage.Driver)
	}
	c.Storage.Driver = driver
	if driver == StoragePostgres && strings.TrimSpace(c.Database.Host) == "" {
		return fmt.Errorf("database.host is required for the postgres storage driver")
	}
	if c.Payment.Enabled() && strings.TrimSpace(c.Payment.WebhookSecret) == "" {
		return fmt.Errorf("payment.webhook_secret is required when payment keys are set")
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second must be >= 0")
	}
	if _, err := layout.NewSet(c.Layouts); err != nil {
		return err
	}
	return nil
}
