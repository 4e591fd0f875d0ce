package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"cafe_pos_backend/pkg/utils"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the server.
type Config struct {
	Port string

	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBSchemaPath   string
	DBMaxOpenConns int
	DBTxTimeout    time.Duration

	JWTSecret          string
	CORSAllowedOrigins []string

	LogLevel  string
	LogPretty bool

	RabbitMQURL      string // Empty disables the broker notifier
	RabbitMQExchange string
	RedisAddr        string // Empty disables idempotency keys
	IdempotencyTTL   time.Duration
	NotifyTimeout    time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Port: utils.Getenv("PORT", "8080"),

		DBHost:         utils.Getenv("DB_HOST", "localhost"),
		DBPort:         utils.Getenv("DB_PORT", "5432"),
		DBUser:         utils.Getenv("DB_USER", "postgres"),
		DBPassword:     utils.Getenv("DB_PASSWORD", "postgres"),
		DBName:         utils.Getenv("DB_NAME", "cafe_pos"),
		DBSSLMode:      utils.Getenv("DB_SSLMODE", "disable"),
		DBSchemaPath:   utils.Getenv("DB_SCHEMA_PATH", ""),
		DBMaxOpenConns: utils.GetenvInt("DB_MAX_OPEN_CONNS", 25),
		DBTxTimeout:    utils.GetenvDuration("DB_TX_TIMEOUT", 10*time.Second),

		JWTSecret:          utils.Getenv("JWT_SECRET", ""),
		CORSAllowedOrigins: utils.GetenvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		LogLevel:  utils.Getenv("LOG_LEVEL", "info"),
		LogPretty: utils.GetenvBool("LOG_PRETTY", true),

		RabbitMQURL:      utils.Getenv("RABBITMQ_URL", ""),
		RabbitMQExchange: utils.Getenv("RABBITMQ_EXCHANGE", "cafe_pos.events"),
		RedisAddr:        utils.Getenv("REDIS_ADDR", ""),
		IdempotencyTTL:   utils.GetenvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		NotifyTimeout:    utils.GetenvDuration("NOTIFY_TIMEOUT", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.DBMaxOpenConns)
	}
	if c.DBTxTimeout <= 0 {
		return fmt.Errorf("DB_TX_TIMEOUT must be positive, got %s", c.DBTxTimeout)
	}
	return nil
}

// DSN returns the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
