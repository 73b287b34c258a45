// Package auth guards the API with a single password and locally issued
// bearer tokens. Tokens are opaque strings with a server-side expiry; no
// structure is promised to callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var (
	ErrPasswordAlreadySet = errors.New("password already set")
	ErrPasswordNotSet     = errors.New("password not set up yet")
	ErrWrongPassword      = errors.New("wrong password")
	ErrWeakPassword       = errors.New("password too short (min 4 characters)")
)

// Token is an issued credential. Value is opaque to every consumer.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	store    *storage.SQLiteRepository
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(store *storage.SQLiteRepository, tokenTTL time.Duration) *Service {
	return &Service{
		store:    store,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Setup stores the password on first run. It refuses to overwrite an
// existing credential; changing the password is not an API operation.
func (s *Service) Setup(ctx context.Context, password string) error {
	if len(strings.TrimSpace(password)) < 4 {
		return ErrWeakPassword
	}

	_, err := s.store.GetPasswordHash(ctx)
	if err == nil {
		return ErrPasswordAlreadySet
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("check credential: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.SetPasswordHash(ctx, string(hash))
}

// Login verifies the password and issues a fresh token. Expired tokens are
// purged opportunistically on each successful login.
func (s *Service) Login(ctx context.Context, password string) (Token, error) {
	hash, err := s.store.GetPasswordHash(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return Token{}, ErrPasswordNotSet
	}
	if err != nil {
		return Token{}, fmt.Errorf("load credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Token{}, ErrWrongPassword
	}

	token := Token{
		Value:     uuid.New().String(),
		ExpiresAt: s.now().Add(s.tokenTTL),
	}
	if err := s.store.SaveToken(ctx, token.Value, token.ExpiresAt); err != nil {
		return Token{}, fmt.Errorf("persist token: %w", err)
	}

	if err := s.store.DeleteExpiredTokens(ctx, s.now()); err != nil {
		return Token{}, fmt.Errorf("purge tokens: %w", err)
	}
	return token, nil
}

// Check validates a bearer token. Unknown and expired tokens both fail
// with core.ErrAuthRequired; callers must not learn which it was.
func (s *Service) Check(ctx context.Context, tokenValue string) error {
	if tokenValue == "" {
		return core.ErrAuthRequired
	}
	expiresAt, err := s.store.TokenExpiry(ctx, tokenValue)
	if errors.Is(err, storage.ErrNotFound) {
		return core.ErrAuthRequired
	}
	if err != nil {
		return fmt.Errorf("look up token: %w", err)
	}
	if s.now().After(expiresAt) {
		return core.ErrAuthRequired
	}
	return nil
}
