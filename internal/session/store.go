// Package session owns the authenticated identity: who is logged in and with
// which bearer token. The pair lives in memory and in durable storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

// ErrNotAuthenticated is returned by operations that need a session.
var ErrNotAuthenticated = errors.New("not logged in")

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Store is the single source of truth for the current session.
type Store struct {
	auth   Authenticator
	store  storage.Store
	logger *applog.Logger
	clock  core.Clock

	mu      sync.RWMutex
	current core.Session
}

// Option customizes a Store.
type Option func(*Store)

func WithLogger(l *applog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentSession)
		}
	}
}

func WithClock(c core.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

func New(auth Authenticator, store storage.Store, opts ...Option) *Store {
	s := &Store{
		auth:   auth,
		store:  store,
		logger: applog.Discard(),
		clock:  core.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates and persists the session before returning it. A server
// rejection is returned unchanged so its message reaches the user verbatim.
func (s *Store) Login(ctx context.Context, username, password string) (core.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.Session{}, core.ErrMissingCredentials
	}

	token, err := s.auth.Login(ctx, username, password)
	if err != nil {
		s.logger.WarnContext(ctx, "Login failed",
			applog.FieldOperation, applog.OpLogin,
			applog.FieldUsername, username,
			applog.FieldError, err)
		return core.Session{}, err
	}

	sess := core.Session{Username: username, Token: token}
	if err := storage.SetMany(ctx, s.store,
		[2]string{storage.KeyUsername, sess.Username},
		[2]string{storage.KeyUserToken, sess.Token},
	); err != nil {
		// Do not leave half a session behind.
		_ = s.store.Delete(ctx, storage.KeyUsername, storage.KeyUserToken)
		s.logger.ErrorContext(ctx, "Failed to persist session",
			applog.FieldOperation, applog.OpPersist,
			applog.FieldErrorType, applog.ErrorTypeStorage,
			applog.FieldError, err)
		return core.Session{}, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "User logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUsername, username)
	return sess, nil
}

// Restore loads a persisted session. Missing halves or an expired JWT yield
// the empty session.
func (s *Store) Restore(ctx context.Context) (core.Session, error) {
	username, okUser, err := s.store.Get(ctx, storage.KeyUsername)
	if err != nil {
		return core.Session{}, fmt.Errorf("restore session: %w", err)
	}
	token, okToken, err := s.store.Get(ctx, storage.KeyUserToken)
	if err != nil {
		return core.Session{}, fmt.Errorf("restore session: %w", err)
	}

	sess := core.Session{Username: username, Token: token}
	if !okUser || !okToken || sess.IsEmpty() {
		s.set(core.Session{})
		return core.Session{}, nil
	}

	if expired(token, s.clock.Now()) {
		s.logger.InfoContext(ctx, "Persisted token expired, discarding session",
			applog.FieldOperation, applog.OpRestore,
			applog.FieldUsername, username)
		if err := s.store.Delete(ctx, storage.KeyUsername, storage.KeyUserToken); err != nil {
			return core.Session{}, fmt.Errorf("discard expired session: %w", err)
		}
		s.set(core.Session{})
		return core.Session{}, nil
	}

	s.set(sess)
	s.logger.DebugContext(ctx, "Session restored",
		applog.FieldOperation, applog.OpRestore,
		applog.FieldUsername, username)
	return sess, nil
}

// Logout clears memory first, then storage. The in-memory session is empty
// even when removing the persisted keys fails.
func (s *Store) Logout(ctx context.Context) error {
	s.set(core.Session{})
	if err := s.store.Delete(ctx, storage.KeyUsername, storage.KeyUserToken); err != nil {
		s.logger.ErrorContext(ctx, "Failed to remove persisted session",
			applog.FieldOperation, applog.OpLogout,
			applog.FieldErrorType, applog.ErrorTypeStorage,
			applog.FieldError, err)
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.InfoContext(ctx, "User logged out", applog.FieldOperation, applog.OpLogout)
	return nil
}

func (s *Store) Current() core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	return s.Current().Token
}

func (s *Store) set(sess core.Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

// expired reports whether token is a JWT whose exp claim is before now. The
// signature is not checked: only the backend can verify it.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}
