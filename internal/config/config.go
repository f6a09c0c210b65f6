package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port              string        `env:"PORT" envDefault:"8080"`
	StoreDriver       string        `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	SQLitePath        string        `env:"SQLITE_PATH" envDefault:"./data/poker.db"`
	DBAutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"1m"`
	JWTSecret         string        `env:"JWT_SECRET"`
	QuietInterval     time.Duration `env:"BROADCAST_QUIET_INTERVAL" envDefault:"1s"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Default returns the built-in defaults without reading the environment.
func Default() Config {
	cfg, err := parse(map[string]string{})
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load parses the process environment. With the memory driver and no
// JWT_SECRET a throwaway secret is generated.
func Load() (Config, error) {
	cfg, err := parse(nil)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.JWTSecret = secret
		slog.Warn("JWT_SECRET not set; generated a development secret, tokens will not survive a restart")
	}
	return cfg, nil
}

// parse reads environ, or the process environment when environ is nil.
func parse(environ map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", c.StoreDriver)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s driver", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver != DriverMemory && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required for the %s driver", c.StoreDriver)
	}
	if c.QuietInterval <= 0 {
		return fmt.Errorf("BROADCAST_QUIET_INTERVAL must be positive")
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
