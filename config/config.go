package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

type Config struct {
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	ServerPort       string
	JWTSecret        string
	AppEnv           string
	LogLevel         string
	OtelEndpoint     string
	ShutdownTimeout  time.Duration
}

func LoadConfig() Config {
	return Config{
		DatabaseHost:     getEnv("DATABASE_HOST", "db"),
		DatabasePort:     getEnv("DATABASE_PORT", "5432"),
		DatabaseUser:     getEnv("DATABASE_USER", "postgres"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", "password"),
		DatabaseName:     getEnv("DATABASE_NAME", "vending"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		JWTSecret:        getEnv("JWT_SECRET", defaultJWTSecret),
		AppEnv:           getEnv("APP_ENV", "production"),
		LogLevel:         getEnv("LOG_LEVEL", ""),
		OtelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ShutdownTimeout:  getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

const defaultJWTSecret = "secret"

func LoadConfigOrPanic() Config {
	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}
	return cfg
}

// Validate rejects settings the service must not start with. The built-in
// JWT secret is only accepted in local and development environments.
func (c Config) Validate() error {
	if c.JWTSecret == defaultJWTSecret && !c.isLocal() {
		return fmt.Errorf("JWT_SECRET must be set when APP_ENV is %q", c.AppEnv)
	}
	if c.ServerPort == "" {
		return errors.New("SERVER_PORT must not be empty")
	}
	return nil
}

func (c Config) isLocal() bool {
	return c.AppEnv == "local" || c.AppEnv == "development"
}

func (c Config) PostgresConnStr() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
	)
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func InitDB(ctx context.Context, cfg Config) *sql.DB {
	db, err := sql.Open("postgres", cfg.PostgresConnStr())
	if err != nil {
		panic(fmt.Sprintf("failed to open database: %v", err))
	}
	if err = db.PingContext(ctx); err != nil {
		panic(fmt.Sprintf("failed to ping database: %v", err))
	}
	return db
}
