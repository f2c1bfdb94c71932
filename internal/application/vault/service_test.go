package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockTokenStore struct{ mock.Mock }

func (m *mockTokenStore) Put(ctx context.Context, t *domain.Token) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockTokenStore) Get(ctx context.Context, token string) (*domain.Token, error) {
	args := m.Called(ctx, token)
	if t, _ := args.Get(0).(*domain.Token); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTokenStore) Consume(ctx context.Context, token string, now int64) error {
	return m.Called(ctx, token, now).Error(0)
}
func (m *mockTokenStore) DeleteByUserPurpose(ctx context.Context, userID, purpose string) error {
	return m.Called(ctx, userID, purpose).Error(0)
}
func (m *mockTokenStore) DeleteExpiredOrConsumed(ctx context.Context, now int64) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// --- Issue ---

func TestIssue_ReplacesPriorToken(t *testing.T) {
	repo := &mockTokenStore{}
	repo.On("DeleteByUserPurpose", mock.Anything, "u1", domain.PurposeEmailVerify).Return(nil)

	var stored *domain.Token
	repo.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.Token)
	}).Return(nil)

	svc := NewService(repo)
	value, err := svc.Issue(context.Background(), "u1", domain.PurposeEmailVerify, 24*time.Hour)

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, value, stored.Token)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, domain.PurposeEmailVerify, stored.Purpose)
	assert.Greater(t, stored.ExpiresAt, time.Now().Unix())
	assert.Zero(t, stored.ConsumedAt)
	repo.AssertExpectations(t)
}

func TestIssue_TokensAreUnique(t *testing.T) {
	repo := &mockTokenStore{}
	repo.On("DeleteByUserPurpose", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo)
	t1, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset, time.Hour)
	require.NoError(t, err)
	t2, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
	assert.Len(t, t1, 43) // 32 bytes base64url without padding
}

func TestIssue_PriorDeleteFailure(t *testing.T) {
	repo := &mockTokenStore{}
	repo.On("DeleteByUserPurpose", mock.Anything, "u1", domain.PurposeEmailVerify).Return(assert.AnError)

	svc := NewService(repo)
	_, err := svc.Issue(context.Background(), "u1", domain.PurposeEmailVerify, time.Hour)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- Redeem ---

func liveToken(purpose string) *domain.Token {
	now := time.Now().Unix()
	return &domain.Token{
		Token:     "tok1",
		UserID:    "u1",
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now + 3600,
	}
}

func TestRedeem_Success(t *testing.T) {
	repo := &mockTokenStore{}
	repo.On("Get", mock.Anything, "tok1").Return(liveToken(domain.PurposeEmailVerify), nil)
	repo.On("Consume", mock.Anything, "tok1", mock.Anything).Return(nil)

	svc := NewService(repo)
	userID, err := svc.Redeem(context.Background(), "tok1", domain.PurposeEmailVerify)

	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	repo.AssertExpectations(t)
}

func TestRedeem_NotFound(t *testing.T) {
	repo := &mockTokenStore{}
	repo.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	svc := NewService(repo)
	_, err := svc.Redeem(context.Background(), "missing", domain.PurposeEmailVerify)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRedeem_PurposeMismatchIsNotFound(t *testing.T) {
	repo := &mockTokenStore{}
	repo.On("Get", mock.Anything, "tok1").Return(liveToken(domain.PurposeEmailVerify), nil)

	svc := NewService(repo)
	_, err := svc.Redeem(context.Background(), "tok1", domain.PurposePasswordReset)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	repo.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedeem_Expired(t *testing.T) {
	tok := liveToken(domain.PurposeEmailVerify)
	tok.ExpiresAt = time.Now().Unix() - 10

	repo := &mockTokenStore{}
	repo.On("Get", mock.Anything, "tok1").Return(tok, nil)

	svc := NewService(repo)
	_, err := svc.Redeem(context.Background(), "tok1", domain.PurposeEmailVerify)
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

func TestRedeem_ExpiredWinsOverConsumed(t *testing.T) {
	tok := liveToken(domain.PurposeEmailVerify)
	tok.ExpiresAt = time.Now().Unix() - 10
	tok.ConsumedAt = time.Now().Unix() - 20

	repo := &mockTokenStore{}
	repo.On("Get", mock.Anything, "tok1").Return(tok, nil)

	svc := NewService(repo)
	_, err := svc.Redeem(context.Background(), "tok1", domain.PurposeEmailVerify)
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

func TestRedeem_AlreadyUsed(t *testing.T) {
	tok := liveToken(domain.PurposeEmailVerify)
	tok.ConsumedAt = time.Now().Unix() - 5

	repo := &mockTokenStore{}
	repo.On("Get", mock.Anything, "tok1").Return(tok, nil)

	svc := NewService(repo)
	_, err := svc.Redeem(context.Background(), "tok1", domain.PurposeEmailVerify)
	assert.True(t, errors.Is(err, domain.ErrAlreadyUsed))
}

// The store's compare-and-set decides races: a redeemer that read a live
// token can still lose the Consume call and must surface AlreadyUsed.
func TestRedeem_LostRace(t *testing.T) {
	repo := &mockTokenStore{}
	repo.On("Get", mock.Anything, "tok1").Return(liveToken(domain.PurposeEmailVerify), nil)
	repo.On("Consume", mock.Anything, "tok1", mock.Anything).Return(domain.ErrAlreadyUsed)

	svc := NewService(repo)
	_, err := svc.Redeem(context.Background(), "tok1", domain.PurposeEmailVerify)
	assert.True(t, errors.Is(err, domain.ErrAlreadyUsed))
}

// --- Sweep ---

func TestSweep(t *testing.T) {
	now := time.Now()
	repo := &mockTokenStore{}
	repo.On("DeleteExpiredOrConsumed", mock.Anything, now.Unix()).Return(3, nil)

	svc := NewService(repo)
	removed, err := svc.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}

func TestSweep_Error(t *testing.T) {
	repo := &mockTokenStore{}
	repo.On("DeleteExpiredOrConsumed", mock.Anything, mock.Anything).Return(0, assert.AnError)

	svc := NewService(repo)
	_, err := svc.Sweep(context.Background(), time.Now())
	assert.Error(t, err)
}
