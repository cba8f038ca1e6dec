package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ledger-service/internal/config"
	"ledger-service/internal/domain"
	"ledger-service/internal/handler"
	"ledger-service/internal/notifier"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/internal/repository/memory"
	"ledger-service/internal/router"
	"ledger-service/internal/storage"
	"ledger-service/internal/usecase/account"
	"ledger-service/internal/usecase/approval"
	"ledger-service/internal/usecase/common"
	"ledger-service/internal/usecase/report"
	"ledger-service/internal/usecase/request"
	"ledger-service/internal/usecase/settlement"
	"ledger-service/shared/utils/cache"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	db         *pgxpool.Pool
	cache      *cache.Cache
	publisher  pub.Publisher
	logger     *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{logger: logger}

	store, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	checks := map[string]func(context.Context) error{}
	if s.db != nil {
		checks["postgres"] = s.db.Ping
	}

	defaultSide, _ := domain.ParseSide(cfg.DefaultFavoredSide)
	var sides repository.SideStore = repository.NewMemorySideStore(defaultSide)
	if cfg.RedisAddr != "" {
		s.cache = cache.NewCache([]string{cfg.RedisAddr}, cfg.RedisPass, false, "ledger")
		if err := s.cache.Ping(ctx); err != nil {
			s.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		sides = repository.NewRedisSideStore(s.cache, defaultSide)
		checks["redis"] = s.cache.Ping
		logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR not set, favored side is process-local")
	}

	backend := "nop"
	switch {
	case len(cfg.KafkaBrokers) > 0:
		s.publisher = pub.NewKafkaPublisher(pub.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger), logger)
		backend = "kafka"
	case s.cache != nil:
		s.publisher = pub.NewRedisPublisher(s.cache.Client(), pub.LedgerEventsChannel, logger)
		backend = "redis"
	default:
		s.publisher = pub.NopPublisher{}
	}
	logger.Info("event publisher selected", zap.String("backend", backend))

	hub := notifier.New(logger)
	events := common.NewEvents(s.publisher, backend, hub, logger)

	h := handler.New(handler.Deps{
		Accounts:   account.New(store, events, logger),
		Settlement: settlement.New(store, sides, events, logger),
		Requests:   request.New(store, events, logger),
		Approvals: approval.New(store, approval.Policy{
			WithdrawalDebitOnApprove: cfg.WithdrawalDebitOnApprove,
		}, events, logger),
		Reports:        report.New(store),
		Uploads:        storage.NewUploads(cfg.UploadDir, cfg.UploadBaseURL),
		Notifier:       hub,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		Checks:         checks,
		Logger:         logger,
	})

	opts := router.Options{AllowedOrigins: cfg.AllowedOrigins}
	if s.cache != nil {
		opts.RateCounter = s.cache
	}

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router.New(h, opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Storage == config.StorageMemory {
		s.logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}

	pool, err := config.ConnectDB(ctx, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.db = pool
	return repository.NewPGStore(pool, s.logger), nil
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("close publisher", zap.Error(err))
		}
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}
