package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buskalo-bff/internal/cache"
)

var ErrNoToken = errors.New("no token persisted")

// TokenStore persists the bearer token of one browser session.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// CacheTokenStore keeps the token in a cache.Store under auth_token:<sid>.
type CacheTokenStore struct {
	store cache.Store
	key   string
	ttl   time.Duration
}

func NewCacheTokenStore(store cache.Store, sessionID string, ttl time.Duration) *CacheTokenStore {
	return &CacheTokenStore{
		store: store,
		key:   "auth_token:" + sessionID,
		ttl:   ttl,
	}
}

func (s *CacheTokenStore) Load(ctx context.Context) (string, error) {
	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, cache.ErrMiss) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if len(data) == 0 {
		return "", ErrNoToken
	}
	return string(data), nil
}

func (s *CacheTokenStore) Save(ctx context.Context, token string) error {
	if err := s.store.Set(ctx, s.key, []byte(token), s.ttl); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *CacheTokenStore) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
