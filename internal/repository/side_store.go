package repository

import (
	"context"
	"fmt"
	"sync"

	"ledger-service/internal/domain"
	"ledger-service/shared/utils/cache"
	xerrors "ledger-service/shared/utils/errors"
)

const favoredSideKey = "favored_side"

// RedisSideStore keeps the favored side in one Redis key so every replica sees the same value.
type RedisSideStore struct {
	cache       *cache.Cache
	defaultSide domain.Side
}

func NewRedisSideStore(c *cache.Cache, defaultSide domain.Side) *RedisSideStore {
	return &RedisSideStore{cache: c, defaultSide: defaultSide}
}

func (s *RedisSideStore) Get(ctx context.Context) (domain.Side, error) {
	v, found, err := s.cache.Get(ctx, favoredSideKey)
	if err != nil {
		return "", fmt.Errorf("read favored side: %w", err)
	}
	if !found {
		return s.defaultSide, nil
	}
	side, ok := domain.ParseSide(v)
	if !ok {
		return s.defaultSide, nil
	}
	return side, nil
}

func (s *RedisSideStore) Set(ctx context.Context, side domain.Side) error {
	if _, ok := domain.ParseSide(string(side)); !ok {
		return xerrors.ErrInvalidSide
	}
	if err := s.cache.Set(ctx, favoredSideKey, string(side), 0); err != nil {
		return fmt.Errorf("write favored side: %w", err)
	}
	return nil
}

// MemorySideStore is a single-process favored side cell.
type MemorySideStore struct {
	mu   sync.RWMutex
	side domain.Side
}

func NewMemorySideStore(initial domain.Side) *MemorySideStore {
	if _, ok := domain.ParseSide(string(initial)); !ok {
		initial = domain.DefaultFavoredSide
	}
	return &MemorySideStore{side: initial}
}

func (s *MemorySideStore) Get(_ context.Context) (domain.Side, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.side, nil
}

func (s *MemorySideStore) Set(_ context.Context, side domain.Side) error {
	parsed, ok := domain.ParseSide(string(side))
	if !ok {
		return xerrors.ErrInvalidSide
	}
	s.mu.Lock()
	s.side = parsed
	s.mu.Unlock()
	return nil
}
