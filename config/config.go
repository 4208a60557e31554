package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the aggregation service. It is built
// once at start-up and passed down explicitly.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func (t TelemetryConfig) Validate() error {
	if t.MetricsPort < 0 {
		return fmt.Errorf("telemetry.metrics_port cannot be negative")
	}
	return nil
}

// SchedulerConfig controls periodic re-aggregation of registered workspaces.
type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Tick          string        `mapstructure:"tick"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
}

func (s SchedulerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if strings.TrimSpace(s.Tick) == "" {
		return fmt.Errorf("scheduler.tick required when scheduler is enabled")
	}
	if s.LockTTL <= 0 {
		return fmt.Errorf("scheduler.lock_ttl must be > 0")
	}
	if s.RatePerMinute <= 0 {
		return fmt.Errorf("scheduler.rate_per_minute must be > 0")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Driver         string         `mapstructure:"driver"` // postgres, sqlite or none
	PersistTimeout time.Duration  `mapstructure:"persist_timeout"`
	Postgres       PostgresConfig `mapstructure:"postgres"`
	SQLite         SQLiteConfig   `mapstructure:"sqlite"`
	Redis          RedisConfig    `mapstructure:"redis"`
	Stream         StreamConfig   `mapstructure:"stream"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

func (s StorageConfig) Validate() error {
	switch s.Driver {
	case DriverPostgres:
		if err := s.Postgres.Validate(); err != nil {
			return err
		}
	case DriverSQLite:
		if strings.TrimSpace(s.SQLite.Path) == "" {
			return fmt.Errorf("storage.sqlite.path required")
		}
	case DriverNone:
	default:
		return fmt.Errorf("storage.driver %q not supported (postgres, sqlite, none)", s.Driver)
	}
	if s.Redis.Enabled() {
		if err := s.Redis.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DSN returns the database/sql driver name and data source for the
// configured driver.
func (s StorageConfig) DSN() (driver, dsn string, err error) {
	switch s.Driver {
	case DriverPostgres:
		dsn, err = s.Postgres.DSN()
		return "postgres", dsn, err
	case DriverSQLite:
		return "sqlite", s.SQLite.Path, nil
	default:
		return "", "", errors.New("storage disabled")
	}
}

// MigrationURL returns the golang-migrate database URL.
func (s StorageConfig) MigrationURL() (string, error) {
	switch s.Driver {
	case DriverPostgres:
		return s.Postgres.DSN()
	case DriverSQLite:
		return "sqlite://" + s.SQLite.Path, nil
	default:
		return "", errors.New("storage disabled")
	}
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres:// URL from the discrete fields unless URL is set.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + port,
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String(), nil
}

// SQLiteConfig points at a local database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a Redis host is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr is host:port.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// StreamConfig names the Redis stream that mirrors stored facts.
type StreamConfig struct {
	Name   string `mapstructure:"name"`
	MaxLen int64  `mapstructure:"max_len"`
}

// LoadConfig reads configuration from path (or the default search paths when
// empty), applies BRANDLENS_* environment overrides and validates the result.
// A missing config file is not an error when path is empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("BRANDLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Providers = cfg.Providers.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		c.Server, c.Telemetry, c.Scheduler, c.Storage, c.Providers,
	}
	for _, section := range validators {
		if err := section.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")

	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.request_timeout", 45*time.Second)
	v.SetDefault("server.shutdown_timeout", 20*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.metrics_port", 0)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "brandlens")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.tick", "@every 1m")
	v.SetDefault("scheduler.lock_ttl", 5*time.Minute)
	v.SetDefault("scheduler.rate_per_minute", 6)

	v.SetDefault("storage.driver", DriverNone)
	v.SetDefault("storage.persist_timeout", 15*time.Second)
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.host", "")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.sqlite.path", "brandlens.db")
	v.SetDefault("storage.redis.host", "")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.stream.name", "brandlens:facts")
	v.SetDefault("storage.stream.max_len", 10000)

	setProviderDefaults(v)
}
