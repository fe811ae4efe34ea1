package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultFallbackToken is sent when nothing has been persisted yet
const DefaultFallbackToken = "123-x"

const bearerPrefix = "Bearer "

// Session owns the bearer token used for every outgoing request. The token
// is read at send time and replaced when a response rotates it; concurrent
// rotations resolve last-writer-wins.
type Session struct {
	store    TokenStore
	fallback string
	logger   *slog.Logger

	mu    sync.RWMutex
	token string
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionLogger sets the logger used to report rotations
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// NewSession creates a session backed by store. fallback is used while no
// token is persisted; an empty fallback selects DefaultFallbackToken.
func NewSession(store TokenStore, fallback string, opts ...SessionOption) *Session {
	if fallback == "" {
		fallback = DefaultFallbackToken
	}
	s := &Session{
		store:    store,
		fallback: fallback,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted token into the session
func (s *Session) Load(ctx context.Context) error {
	token, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Token returns the persisted token, or the fallback when none is set
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token != "" {
		return s.token
	}
	return s.fallback
}

// HasToken reports whether a non-fallback token is in use
func (s *Session) HasToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// SetToken persists token and makes it current. A "Bearer " prefix is
// stripped so the stored value is always the bare credential.
func (s *Session) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), bearerPrefix))
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	s.mu.Lock()
	changed := s.token != token
	s.token = token
	s.mu.Unlock()

	if err := s.store.Save(ctx, token); err != nil {
		return err
	}
	if changed {
		s.logger.Info("auth token rotated", "fingerprint", Fingerprint(token))
	}
	return nil
}

// Clear forgets the persisted token; the fallback is used afterwards
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return s.store.Clear(ctx)
}

// Fingerprint returns a short, non-reversible identifier for a token that
// is safe to log
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:8]
}
