package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	DocsPath     string `mapstructure:"docs_path"`
}

// StorageConfig selects the persistence adapter: "postgres" or "mongo".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// FeedConfig holds the nearby-feed parameters.
type FeedConfig struct {
	DefaultRadiusKm float64 `mapstructure:"default_radius_km"`
	MaxRadiusKm     float64 `mapstructure:"max_radius_km"`
	// CandidateLimit is the page size of each candidate query.
	CandidateLimit   int             `mapstructure:"candidate_limit"`
	FallbackLocation *FallbackConfig `mapstructure:"fallback_location"`
}

// FallbackConfig is the coordinate used when a viewer has no known location.
// It is only applied when explicitly configured.
type FallbackConfig struct {
	Lat float64 `mapstructure:"lat"`
	Lon float64 `mapstructure:"lon"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.docs_path", "api/openapi.yaml")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geobubbles")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geobubbles")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "geobubbles")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.prefix", "geobubbles:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "account-purge")
	v.SetDefault("feed.default_radius_km", 0.2)
	v.SetDefault("feed.max_radius_km", 50.0)
	v.SetDefault("feed.candidate_limit", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOBUBBLES_DATABASE_HOST → database.host
	v.SetEnvPrefix("GEOBUBBLES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The fallback has no defaults, so environment-only values never reach Unmarshal.
	if cfg.Feed.FallbackLocation == nil && v.IsSet("feed.fallback_location.lat") && v.IsSet("feed.fallback_location.lon") {
		cfg.Feed.FallbackLocation = &FallbackConfig{
			Lat: v.GetFloat64("feed.fallback_location.lat"),
			Lon: v.GetFloat64("feed.fallback_location.lon"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, "mongo.uri is required")
		}
		if c.Mongo.Database == "" {
			errs = append(errs, "mongo.database is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.driver must be postgres or mongo, got %q", c.Storage.Driver))
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Temporal.Enabled && c.Temporal.HostPort == "" {
		errs = append(errs, "temporal.host_port is required when temporal is enabled")
	}
	if c.Feed.DefaultRadiusKm <= 0 {
		errs = append(errs, "feed.default_radius_km must be positive")
	}
	if c.Feed.MaxRadiusKm < c.Feed.DefaultRadiusKm {
		errs = append(errs, "feed.max_radius_km must be >= feed.default_radius_km")
	}
	if c.Feed.CandidateLimit <= 0 {
		errs = append(errs, "feed.candidate_limit must be positive")
	}
	if f := c.Feed.FallbackLocation; f != nil {
		if math.Abs(f.Lat) > 90 || math.Abs(f.Lon) > 180 {
			errs = append(errs, fmt.Sprintf("feed.fallback_location out of range: %v,%v", f.Lat, f.Lon))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
