package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-api/internal/domain"
	pkgtoken "github.com/go-auth-api/internal/pkg/token"
)

const tokenBytes = 32

// Service is the vault of single-use, time-bound tokens backing the
// email-verification and password-reset flows.
type Service interface {
	// Issue replaces any live token of the same purpose for the user and
	// returns a fresh one valid for ttl.
	Issue(ctx context.Context, userID, purpose string, ttl time.Duration) (string, error)
	// Redeem consumes the token exactly once and returns the owning user id.
	// Fails with domain.ErrNotFound, domain.ErrExpired or domain.ErrAlreadyUsed.
	Redeem(ctx context.Context, token, purpose string) (string, error)
	// Sweep removes expired and consumed tokens. Maintenance only.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type tokenStore interface {
	Put(ctx context.Context, t *domain.Token) error
	Get(ctx context.Context, token string) (*domain.Token, error)
	Consume(ctx context.Context, token string, now int64) error
	DeleteByUserPurpose(ctx context.Context, userID, purpose string) error
	DeleteExpiredOrConsumed(ctx context.Context, now int64) (int, error)
}

type service struct {
	repo tokenStore
}

func NewService(repo tokenStore) Service {
	return &service{repo: repo}
}

func (s *service) Issue(ctx context.Context, userID, purpose string, ttl time.Duration) (string, error) {
	if err := s.repo.DeleteByUserPurpose(ctx, userID, purpose); err != nil {
		return "", err
	}
	value, err := pkgtoken.New(tokenBytes)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	t := &domain.Token{
		Token:     value,
		UserID:    userID,
		Purpose:   purpose,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	if err := s.repo.Put(ctx, t); err != nil {
		return "", err
	}
	return value, nil
}

func (s *service) Redeem(ctx context.Context, token, purpose string) (string, error) {
	t, err := s.repo.Get(ctx, token)
	if err != nil {
		return "", err
	}
	// A token presented for the wrong purpose is indistinguishable from an
	// unknown one to the caller.
	if t.Purpose != purpose {
		return "", fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	now := time.Now().Unix()
	if now >= t.ExpiresAt {
		return "", fmt.Errorf("token expired: %w", domain.ErrExpired)
	}
	if t.ConsumedAt != 0 {
		return "", fmt.Errorf("token already used: %w", domain.ErrAlreadyUsed)
	}
	// Compare-and-set in the store; loses to at most one concurrent redeemer.
	if err := s.repo.Consume(ctx, token, now); err != nil {
		return "", err
	}
	return t.UserID, nil
}

func (s *service) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed, err := s.repo.DeleteExpiredOrConsumed(ctx, now.Unix())
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		slog.Info("swept single-use tokens", "removed", removed)
	}
	return removed, nil
}
