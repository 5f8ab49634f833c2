// Package config loads the server configuration from YAML with environment
// overrides. Everything has an explicit default so a bare binary starts with
// the in-memory store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Logging     LoggingConfig   `yaml:"logging"`
	Database    DatabaseConfig  `yaml:"database"`
	Redis       RedisConfig     `yaml:"redis"`
	Auth        AuthConfig      `yaml:"auth"`
	RateLimits  RateLimitConfig `yaml:"rate_limits"`
	AI          AIConfig        `yaml:"ai"`
	CORS        CORSConfig      `yaml:"cors"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig holds PostgreSQL settings. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds shared-store settings. An empty address disables the
// shared cache and limiter paths.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// RateLimitConfig holds the per-class budgets.
type RateLimitConfig struct {
	API   ClassConfig `yaml:"api"`
	Login ClassConfig `yaml:"login"`
	AI    ClassConfig `yaml:"ai"`
}

// ClassConfig is one call class budget.
type ClassConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// AIConfig holds provider settings.
type AIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// CORSConfig holds allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{},
		Auth:  AuthConfig{Issuer: "explorer-api"},
		RateLimits: RateLimitConfig{
			API:   ClassConfig{Limit: 100, Window: time.Minute},
			Login: ClassConfig{Limit: 5, Window: 15 * time.Minute},
			AI:    ClassConfig{Limit: 10, Window: time.Minute},
		},
		AI: AIConfig{
			Model:             "gpt-4o-mini",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load reads the YAML file at path (skipped when empty or absent), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether the server runs in production mode, which
// redacts internal error details.
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required (EXPLORER_AUTH_SECRET)")
	}
	if len(c.Auth.Secret) < 32 {
		return fmt.Errorf("auth secret must be at least 32 bytes")
	}
	for name, class := range map[string]ClassConfig{
		"api": c.RateLimits.API, "login": c.RateLimits.Login, "ai": c.RateLimits.AI,
	} {
		if class.Limit <= 0 || class.Window <= 0 {
			return fmt.Errorf("rate limit class %s must have a positive limit and window", name)
		}
	}
	return nil
}

// applyEnv overlays EXPLORER_* environment variables.
func applyEnv(cfg *Config) {
	setString(&cfg.Environment, "EXPLORER_ENV")
	setString(&cfg.Server.Host, "EXPLORER_HOST")
	setInt(&cfg.Server.Port, "EXPLORER_PORT")
	setString(&cfg.Logging.Level, "EXPLORER_LOG_LEVEL")
	setString(&cfg.Logging.Format, "EXPLORER_LOG_FORMAT")
	setString(&cfg.Database.DSN, "EXPLORER_DATABASE_DSN")
	setString(&cfg.Redis.Addr, "EXPLORER_REDIS_ADDR")
	setString(&cfg.Redis.Password, "EXPLORER_REDIS_PASSWORD")
	setString(&cfg.Auth.Secret, "EXPLORER_AUTH_SECRET")
	setString(&cfg.AI.BaseURL, "EXPLORER_AI_BASE_URL")
	setString(&cfg.AI.APIKey, "EXPLORER_AI_API_KEY")
	setString(&cfg.AI.Model, "EXPLORER_AI_MODEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
