package session

import (
	"context"
	"time"

	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/logger"

	"go.uber.org/zap"
)

// Registry keeps live sessions in memory. Persisted tokens live in the
// shared store, so an evicted session is rebuilt by bootstrapping again.
type Registry struct {
	sessions       *cache.TTLCache[*Session]
	store          cache.Store
	profiles       ProfileFetcher
	tokenTTL       time.Duration
	profileTimeout time.Duration
}

func NewRegistry(store cache.Store, profiles ProfileFetcher, idleTTL, tokenTTL, profileTimeout time.Duration) *Registry {
	return &Registry{
		sessions:       cache.NewTTLCache[*Session](idleTTL, time.Minute),
		store:          store,
		profiles:       profiles,
		tokenTTL:       tokenTTL,
		profileTimeout: profileTimeout,
	}
}

// Get returns the session for sid, creating and bootstrapping it on first use.
// Callers that need a settled state call WaitReady on the result.
func (r *Registry) Get(ctx context.Context, sid string) *Session {
	s, found := r.sessions.GetOrSet(sid, func() *Session {
		return New(NewCacheTokenStore(r.store, sid, r.tokenTTL), r.profiles, r.profileTimeout)
	})
	if !found {
		logger.FromContext(ctx).Debug("Bootstrapping session", zap.Int("live_sessions", r.sessions.Size()))
		bootCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.profileTimeout)
		go func() {
			defer cancel()
			s.Bootstrap(bootCtx)
		}()
	}
	return s
}

// Ready is Get followed by WaitReady.
func (r *Registry) Ready(ctx context.Context, sid string) (*Session, error) {
	s := r.Get(ctx, sid)
	if err := s.WaitReady(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Registry) Close() {
	r.sessions.Stop()
}
