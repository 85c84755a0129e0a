// Package session holds the per-browser authentication state.
//
// A Session moves through bootstrapping, then anonymous or authenticated.
// Login is two-phase: the token is acquired synchronously and the profile
// is loaded in the background, so callers choose whether to wait for it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/models"

	"go.uber.org/zap"
)

// ErrSuperseded is returned by Pending.Wait when a logout or another login
// replaced the session before the profile arrived.
var ErrSuperseded = errors.New("session changed before profile loaded")

type State string

const (
	StateBootstrapping State = "bootstrapping"
	StateAnonymous     State = "anonymous"
	StateTokenAcquired State = "token_acquired"
	StateAuthenticated State = "authenticated"
)

type ProfileFetcher interface {
	GetProfile(ctx context.Context, token string) (*models.User, error)
}

type View struct {
	User    *models.User
	Token   string
	Loading bool
	State   State
}

// Model renders the view the way the browser consumes it.
func (v View) Model() models.SessionView {
	return models.SessionView{
		User:          v.User,
		Authenticated: v.User != nil,
		Loading:       v.Loading,
		State:         string(v.State),
	}
}

type Session struct {
	mu       sync.RWMutex
	tokens   TokenStore
	profiles ProfileFetcher
	timeout  time.Duration
	now      func() time.Time

	state State
	token string
	user  *models.User
	gen   uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// New returns a session in the bootstrapping state. profileTimeout bounds
// the detached profile fetch that follows Login.
func New(tokens TokenStore, profiles ProfileFetcher, profileTimeout time.Duration) *Session {
	return &Session{
		tokens:   tokens,
		profiles: profiles,
		timeout:  profileTimeout,
		now:      time.Now,
		state:    StateBootstrapping,
		ready:    make(chan struct{}),
	}
}

// Bootstrap restores the session from the persisted token. Any failure
// clears the token and leaves the session anonymous.
func (s *Session) Bootstrap(ctx context.Context) {
	defer s.readyOnce.Do(func() { close(s.ready) })
	log := logger.FromContext(ctx)

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	token, err := s.tokens.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			log.Warn("Failed to load persisted token", zap.Error(err))
		}
		s.finishBootstrap(gen, "", nil)
		return
	}

	if exp, ok := auth.TokenExpiry(token); ok && !exp.After(s.now()) {
		log.Debug("Persisted token expired", zap.Time("expired_at", exp))
		s.clearToken(ctx)
		s.finishBootstrap(gen, "", nil)
		return
	}

	user, err := s.profiles.GetProfile(ctx, token)
	if err != nil {
		log.Info("Persisted token rejected, signing out", zap.Error(err))
		s.clearToken(ctx)
		s.finishBootstrap(gen, "", nil)
		return
	}
	s.finishBootstrap(gen, token, user)
}

func (s *Session) finishBootstrap(gen uint64, token string, user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		// Login or Logout ran meanwhile and already set the state.
		return
	}
	s.token = token
	s.user = user
	if user != nil {
		s.state = StateAuthenticated
	} else {
		s.state = StateAnonymous
	}
}

func (s *Session) clearToken(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		logger.FromContext(ctx).Warn("Failed to clear persisted token", zap.Error(err))
	}
}

// WaitReady blocks until Bootstrap has finished.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending is the second phase of a login.
type Pending struct {
	done chan struct{}
	user *models.User
	err  error
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait returns the loaded profile, or the reason it never arrived.
func (p *Pending) Wait(ctx context.Context) (*models.User, error) {
	select {
	case <-p.done:
		return p.user, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pending) finish(user *models.User, err error) {
	p.user = user
	p.err = err
	close(p.done)
}

// Login persists token and returns at once; the profile loads in the
// background. A failed profile fetch keeps the token.
func (s *Session) Login(ctx context.Context, token string) *Pending {
	p := &Pending{done: make(chan struct{})}

	if err := s.tokens.Save(ctx, token); err != nil {
		p.finish(nil, err)
		return p
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.token = token
	s.user = nil
	s.state = StateTokenAcquired
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	go func() {
		defer cancel()
		user, err := s.profiles.GetProfile(fetchCtx, token)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			p.finish(nil, ErrSuperseded)
			return
		}
		if err != nil {
			logger.FromContext(fetchCtx).Warn("Profile fetch after login failed", zap.Error(err))
			p.finish(nil, err)
			return
		}
		s.user = user
		s.state = StateAuthenticated
		p.finish(user, nil)
	}()
	return p
}

// Logout clears the persisted token and the in-memory state. A profile
// fetch still running from an earlier Login is discarded.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	s.token = ""
	s.user = nil
	s.state = StateAnonymous
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	return s.tokens.Clear(ctx)
}

// SetUser replaces the cached profile, e.g. after a profile update.
func (s *Session) SetUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return
	}
	s.user = user
	s.state = StateAuthenticated
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		User:    s.user,
		Token:   s.token,
		Loading: s.state == StateBootstrapping,
		State:   s.state,
	}
}
