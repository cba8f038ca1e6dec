package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func ConnectDB(ctx context.Context, cfg *Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DBConn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	// tuning pool settings
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	maxRetries := cfg.DBConnectRetries
	delay := 2 * time.Second

	for i := 1; i <= maxRetries; i++ {
		logger.Info("connecting to database", zap.Int("attempt", i), zap.Int("max_attempts", maxRetries))

		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		var pool *pgxpool.Pool
		pool, err = pgxpool.NewWithConfig(attemptCtx, poolCfg)
		if err == nil {
			// test connection
			pingErr := pool.Ping(attemptCtx)
			if pingErr == nil {
				cancel()
				logger.Info("database connected")
				return pool, nil
			}
			err = fmt.Errorf("ping failed: %w", pingErr)
			pool.Close()
		}
		cancel()

		logger.Warn("database connection failed", zap.Int("attempt", i), zap.Error(err))

		if i < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2 // exponential backoff
		}
	}

	return nil, fmt.Errorf("failed to connect to DB after %d attempts: %w", maxRetries, err)
}
