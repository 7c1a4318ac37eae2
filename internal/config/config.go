// Package config loads service configuration from the environment. A local
// .env file is read first when present so development setups need no exported
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the root configuration for the API server.
type Config struct {
	HTTP      HTTPConfig      `envPrefix:"HTTP_"`
	DB        DBConfig        `envPrefix:"DB_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
}

// HTTPConfig groups server knobs.
type HTTPConfig struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES"   envDefault:"1048576"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"  envSeparator:","`
}

// DBConfig holds the PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        `env:"DSN"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"     envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"     envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"  envDefault:"30m"`
}

// RedisConfig holds the optional shared rate-limit store settings. An empty
// Addr keeps the in-memory store.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// AuthConfig carries the two signing secrets and token lifetimes.
type AuthConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TTL"  envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	Issuer        string        `env:"ISSUER"      envDefault:"tallybook"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`
}

// RateLimitConfig tunes the login limiter and the general per-IP throttle.
type RateLimitConfig struct {
	LoginLimit        int           `env:"LOGIN_LIMIT"    envDefault:"5"`
	LoginWindow       time.Duration `env:"LOGIN_WINDOW"   envDefault:"15m"`
	ThrottlePerSecond int           `env:"THROTTLE_RPS"   envDefault:"50"`
	ThrottleBurst     int           `env:"THROTTLE_BURST" envDefault:"100"`
}

// Load reads configuration from .env (when present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate applies guardrails after parsing.
func (c *Config) Validate() error {
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("config: AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.RateLimit.LoginLimit <= 0 {
		c.RateLimit.LoginLimit = 5
	}
	if c.RateLimit.LoginWindow <= 0 {
		c.RateLimit.LoginWindow = 15 * time.Minute
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 1 << 20
	}
	return nil
}
