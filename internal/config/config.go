// Package config loads service settings from defaults, an optional YAML file
// and AUTHGATE_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	minSecretLength = 32
	minBcryptCost   = 4
	maxBcryptCost   = 31
)

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Database  Database  `yaml:"database"`
	Token     Token     `yaml:"token"`
	Password  Password  `yaml:"password"`
	Telemetry Telemetry `yaml:"telemetry"`
	Log       Log       `yaml:"log"`

	// DefaultRole is linked to every account created through signup.
	DefaultRole int64 `yaml:"default_role" env:"AUTHGATE_DEFAULT_ROLE"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"AUTHGATE_HTTP_ADDR"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"AUTHGATE_HTTP_MAX_BODY_BYTES"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"AUTHGATE_HTTP_ALLOWED_ORIGINS" envSeparator:","`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"AUTHGATE_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"AUTHGATE_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"AUTHGATE_HTTP_SHUTDOWN_TIMEOUT"`
}

// GRPC configures the health endpoint. An empty Addr disables it.
type GRPC struct {
	Addr string `yaml:"addr" env:"AUTHGATE_GRPC_ADDR"`
}

type Database struct {
	Driver      string `yaml:"driver" env:"AUTHGATE_DB_DRIVER"`
	DSN         string `yaml:"dsn" env:"AUTHGATE_DB_DSN"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"AUTHGATE_DB_AUTO_MIGRATE"`
}

type Token struct {
	Secret string        `yaml:"secret" env:"AUTHGATE_TOKEN_SECRET"`
	Issuer string        `yaml:"issuer" env:"AUTHGATE_TOKEN_ISSUER"`
	TTL    time.Duration `yaml:"ttl" env:"AUTHGATE_TOKEN_TTL"`
}

type Password struct {
	BcryptCost int `yaml:"bcrypt_cost" env:"AUTHGATE_BCRYPT_COST"`
}

// Telemetry enables OTLP trace export when OTLPEndpoint is set.
type Telemetry struct {
	ServiceName  string `yaml:"service_name" env:"AUTHGATE_SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"AUTHGATE_OTLP_ENDPOINT"`
}

type Log struct {
	Level string `yaml:"level" env:"AUTHGATE_LOG_LEVEL"`
}

// Default returns the baseline configuration. The token secret has no default.
func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:            ":8080",
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		GRPC:     GRPC{Addr: ":9090"},
		Database: Database{Driver: DriverMemory},
		Token: Token{
			Issuer: "authgate",
			TTL:    time.Hour,
		},
		Password:    Password{BcryptCost: 10},
		Telemetry:   Telemetry{ServiceName: "authgate"},
		Log:         Log{Level: "info"},
		DefaultRole: 3,
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if len(strings.TrimSpace(c.Token.Secret)) < minSecretLength {
		errs = append(errs, fmt.Errorf("token.secret must be at least %d bytes", minSecretLength))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("token.ttl must be positive"))
	}
	if c.Password.BcryptCost < minBcryptCost || c.Password.BcryptCost > maxBcryptCost {
		errs = append(errs, fmt.Errorf("password.bcrypt_cost must be within %d..%d", minBcryptCost, maxBcryptCost))
	}
	if c.DefaultRole <= 0 {
		errs = append(errs, errors.New("default_role must be positive"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be positive"))
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}
