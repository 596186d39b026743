// Package session owns the persisted auth token and user id.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"example.com/gymbooking/internal/auth"
	"example.com/gymbooking/internal/domain"
)

// Store persists the single session record.
type Store interface {
	Load(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Clear(ctx context.Context) error
	Close() error
}

// Service is the only reader and writer of the session record. It is constructed once at
// process start and closed at shutdown.
type Service struct {
	store Store
}

// NewService wraps store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Current returns the stored session, empty when logged out.
func (s *Service) Current(ctx context.Context) (domain.Session, error) {
	return s.store.Load(ctx)
}

// Token returns the stored token or "" when none is stored.
func (s *Service) Token(ctx context.Context) (string, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return sess.AuthToken, nil
}

// UserID returns the stored user id or "" when none is stored.
func (s *Service) UserID(ctx context.Context) (string, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// IsAuthenticated reports whether a token is stored. The token is not revalidated.
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	return sess.Authenticated(), nil
}

// Save persists a new session after login.
func (s *Service) Save(ctx context.Context, sess domain.Session) error {
	sess.AuthToken = strings.TrimSpace(sess.AuthToken)
	if sess.AuthToken == "" {
		return errors.New("session token is required")
	}
	return s.store.Save(ctx, sess)
}

// Clear removes the session on logout.
func (s *Service) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Expiry reports the exp claim of the stored token for display. ok is false when no token is
// stored or the token carries no readable expiry.
func (s *Service) Expiry(ctx context.Context) (time.Time, bool, error) {
	token, err := s.Token(ctx)
	if err != nil || token == "" {
		return time.Time{}, false, err
	}
	claims, err := auth.Inspect(token)
	if err != nil || claims.ExpiresAt.IsZero() {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt, true, nil
}

// Close releases the backing store.
func (s *Service) Close() error {
	return s.store.Close()
}
