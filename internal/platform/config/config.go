// Package config loads dashboard settings from defaults, an optional YAML
// file and the environment, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SourceHTTP     = "http"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"

	LocationReplay = "replay"
	LocationPush   = "push"
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr" env:"LISTEN_ADDR" validate:"required"`
	APIBaseURL  string `yaml:"api_base_url" env:"API_BASE_URL" validate:"required_if=DataSource http,omitempty,url"`
	EventsURL   string `yaml:"events_url" env:"EVENTS_URL" validate:"required,url"`
	AccessToken string `yaml:"access_token" env:"ACCESS_TOKEN" validate:"required"`

	DataSource  string `yaml:"data_source" env:"DATA_SOURCE" validate:"oneof=http sqlite postgres"`
	DBPath      string `yaml:"db_path" env:"DB_PATH" validate:"required_if=DataSource sqlite"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" validate:"required_if=DataSource postgres"`
	SeedPath    string `yaml:"seed_path" env:"SEED_PATH"`

	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	CacheTTL  time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" validate:"gte=0"`

	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:"," validate:"dive,hostname_port"`
	KafkaTopic   string   `yaml:"kafka_topic" env:"KAFKA_TOPIC" validate:"required_with=KafkaBrokers"`

	LocationSource  string        `yaml:"location_source" env:"LOCATION_SOURCE" validate:"oneof=replay push"`
	ReplayTrackPath string        `yaml:"replay_track_path" env:"REPLAY_TRACK_PATH"`
	ReplayInterval  time.Duration `yaml:"replay_interval" env:"REPLAY_INTERVAL" validate:"gt=0"`

	ReassertInterval      time.Duration `yaml:"reassert_interval" env:"REASSERT_INTERVAL" validate:"gt=0"`
	LocationRestartMin    time.Duration `yaml:"location_restart_min" env:"LOCATION_RESTART_MIN" validate:"gt=0"`
	LocationRestartMax    time.Duration `yaml:"location_restart_max" env:"LOCATION_RESTART_MAX" validate:"gtefield=LocationRestartMin"`
	RefetchOnStatusChange bool          `yaml:"refetch_on_status_change" env:"REFETCH_ON_STATUS_CHANGE"`

	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	OTelEndpoint string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT" validate:"omitempty,url"`
}

// Defaults mirror a local development setup against the tracking backend.
func Defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		APIBaseURL:            "http://localhost:3000/api",
		EventsURL:             "ws://localhost:3000/events",
		DataSource:            SourceHTTP,
		DBPath:                "data/app.db",
		SeedPath:              "data/seeds/deliveries.json",
		CacheTTL:              30 * time.Second,
		KafkaTopic:            "driver.telemetry",
		LocationSource:        LocationReplay,
		ReplayInterval:        2 * time.Second,
		ReassertInterval:      20 * time.Second,
		LocationRestartMin:    time.Second,
		LocationRestartMax:    30 * time.Second,
		RefetchOnStatusChange: true,
		LogLevel:              "info",
	}
}

// Load reads .env (if present), CONFIG_FILE (if set) and the process
// environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found (using environment variables)")
	}
	return load(os.Getenv("CONFIG_FILE"), nil)
}

// load is Load without process side effects; a nil environ means os.Environ.
func load(configFile string, environ map[string]string) (Config, error) {
	cfg := Defaults()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("load config: read %q: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: parse yaml %q: %w", configFile, err)
		}
	}

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("load config: parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Config{}, fmt.Errorf("load config: invalid %s (%s)", verrs[0].Namespace(), verrs[0].Tag())
		}
		return Config{}, fmt.Errorf("load config: validate: %w", err)
	}

	return cfg, nil
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
