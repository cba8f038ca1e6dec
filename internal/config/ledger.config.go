package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8030"`

	// Storage selects postgres or memory. memory keeps state only for the process lifetime.
	Storage          string `envconfig:"STORAGE" default:"postgres"`
	DBConn           string `envconfig:"DB_CONN"`
	DBMaxConns       int32  `envconfig:"DB_MAX_CONNS" default:"50"`
	DBMinConns       int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	DBConnectRetries int    `envconfig:"DB_CONNECT_RETRIES" default:"5"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	RedisPass string `envconfig:"REDIS_PASS"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"ledger.events"`

	UploadDir     string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	UploadBaseURL string `envconfig:"UPLOAD_BASE_URL" default:"/api/v1/uploads"`
	MaxUploadMB   int64  `envconfig:"MAX_UPLOAD_MB" default:"10"`

	DefaultFavoredSide       string `envconfig:"DEFAULT_FAVORED_SIDE" default:"short"`
	WithdrawalDebitOnApprove bool   `envconfig:"WITHDRAWAL_DEBIT_ON_APPROVE" default:"false"`

	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
}

// ValidateConfig rejects settings the server cannot start with.
func ValidateConfig(cfg *Config) error {
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DBConn == "" {
			return errors.New("DB_CONN is required when STORAGE=postgres")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}

	side := strings.ToLower(cfg.DefaultFavoredSide)
	if side != "long" && side != "short" {
		return fmt.Errorf("DEFAULT_FAVORED_SIDE must be long or short, got %q", cfg.DefaultFavoredSide)
	}
	cfg.DefaultFavoredSide = side

	if cfg.DBMinConns < 0 || cfg.DBMaxConns < 1 || cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("invalid pool bounds: min=%d max=%d", cfg.DBMinConns, cfg.DBMaxConns)
	}
	if cfg.DBConnectRetries < 1 {
		return errors.New("DB_CONNECT_RETRIES must be at least 1")
	}
	if cfg.MaxUploadMB < 1 {
		return errors.New("MAX_UPLOAD_MB must be at least 1")
	}
	return nil
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
