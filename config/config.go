// Package config loads service settings from the environment.
//
// Values come from process environment variables, optionally seeded from
// .env files. Variables already set in the environment win over file values.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"access-api/response"
)

const (
	HistoryDriverTables = "tables"
	HistoryDriverSQLite = "sqlite"
)

// Service is the identity stamped on error codes and incidents.
type Service struct {
	ID      string `env:"ID,required"`
	Name    string `env:"NAME" envDefault:"access-api"`
	Version string `env:"VERSION" envDefault:"1.0.0"`
}

type Config struct {
	Debug      bool   `env:"DEBUG"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"text"`
	ListenAddr string `env:"LISTEN_ADDR"`
	// Port is set by the Azure Functions custom handler host.
	Port string `env:"FUNCTIONS_CUSTOMHANDLER_PORT"`

	Service Service `envPrefix:"SERVICE_"`

	StorageConnectionString string `env:"STORAGE_CONNECTION_STRING"`

	HistoryDriver      string        `env:"HISTORY_DRIVER" envDefault:"tables"`
	HistoryTable       string        `env:"HISTORY_TABLE" envDefault:"CommandHistory"`
	LegacyHistoryTable string        `env:"LEGACY_HISTORY_TABLE" envDefault:"History"`
	HistorySQLitePath  string        `env:"HISTORY_SQLITE_PATH" envDefault:"data/history.db"`
	HistoryCacheTTL    time.Duration `env:"HISTORY_CACHE_TTL" envDefault:"10m"`

	TendersTable  string `env:"TENDERS_TABLE" envDefault:"Tenders"`
	IncidentQueue string `env:"INCIDENT_QUEUE"`

	RedisConnectionString string        `env:"REDIS_CONNECTION_STRING"`
	InflightTTL           time.Duration `env:"INFLIGHT_TTL" envDefault:"30s"`

	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// Load reads the environment after applying the given .env files. Missing
// files are skipped.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks combinations that struct tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.HistoryDriver {
	case HistoryDriverTables:
		if c.HistoryTable == "" {
			errs = append(errs, errors.New("HISTORY_TABLE is empty"))
		}
	case HistoryDriverSQLite:
		if c.HistorySQLitePath == "" {
			errs = append(errs, errors.New("HISTORY_SQLITE_PATH is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("HISTORY_DRIVER %q is not one of %s, %s", c.HistoryDriver, HistoryDriverTables, HistoryDriverSQLite))
	}
	if c.StorageConnectionString == "" {
		errs = append(errs, errors.New("STORAGE_CONNECTION_STRING is required"))
	}
	if c.TendersTable == "" {
		errs = append(errs, errors.New("TENDERS_TABLE is empty"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not text or json", c.LogFormat))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be greater than zero"))
	}
	if c.InflightTTL <= 0 {
		errs = append(errs, errors.New("INFLIGHT_TTL must be greater than zero"))
	}
	if c.HistoryCacheTTL < 0 {
		errs = append(errs, errors.New("HISTORY_CACHE_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address. LISTEN_ADDR wins over the Functions host
// port; the default is :8080.
func (c Config) Addr() string {
	switch {
	case c.ListenAddr != "":
		return c.ListenAddr
	case c.Port != "":
		return ":" + c.Port
	default:
		return ":8080"
	}
}

// NewLogger returns a logger honouring DEBUG and LOG_FORMAT.
func (c Config) NewLogger() *log.Logger {
	logger := log.New()
	if c.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}

func (c Config) ResponseService() response.Service {
	return response.Service{ID: c.Service.ID, Name: c.Service.Name, Version: c.Service.Version}
}

// RedisOptions parses REDIS_CONNECTION_STRING. It accepts a redis:// URL or
// the Azure form "host:port,password=...,ssl=True". It returns nil when Redis
// is not configured.
func (c Config) RedisOptions() (*redis.Options, error) {
	return ParseRedis(c.RedisConnectionString)
}

func ParseRedis(conn string) (*redis.Options, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, nil
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("redis connection string has no address")
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts, nil
}
