package totp

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-auth-api/internal/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	secretBytes = 20
	codeDigits  = otp.DigitsSix
	period      = 30
	// windows of clock drift tolerated on either side
	skew = 1
)

// Service manages the TOTP second factor: enrollment, provisioning and
// code verification.
type Service interface {
	// GenerateSecret creates and stores a pending (not yet enabled) shared
	// secret and returns it with its provisioning URI.
	GenerateSecret(ctx context.Context, userID string) (secret, uri string, err error)
	// ProvisioningURI builds the otpauth:// URI for an existing secret.
	ProvisioningURI(secret, account string) string
	// VerifyCode checks a submitted code against the current window ±skew.
	VerifyCode(secret, code string, now time.Time) bool
	// ConfirmEnable turns the second factor on once the user proves
	// possession of the secret.
	ConfirmEnable(ctx context.Context, userID, code string) error
	// VerifyLogin is the second-factor check during login.
	VerifyLogin(ctx context.Context, userID, code string) error
	// Status reports whether the second factor is enabled for the account.
	Status(ctx context.Context, userID string) (bool, error)
	// Disable turns the second factor off and clears the stored secret.
	Disable(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type service struct {
	users  userStore
	issuer string
}

func NewService(users userStore, issuer string) Service {
	return &service{users: users, issuer: issuer}
}

func (s *service) GenerateSecret(ctx context.Context, userID string) (string, string, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: u.Username,
		SecretSize:  secretBytes,
		Digits:      codeDigits,
		Period:      period,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp secret: %w", err)
	}
	// Stored pending; totp_enabled stays false until ConfirmEnable.
	if err := s.users.Update(ctx, userID, map[string]interface{}{
		"totp_secret":  key.Secret(),
		"totp_enabled": false,
	}); err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (s *service) ProvisioningURI(secret, account string) string {
	label := url.PathEscape(s.issuer + ":" + account)
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", s.issuer)
	v.Set("period", fmt.Sprintf("%d", period))
	v.Set("digits", codeDigits.String())
	v.Set("algorithm", "SHA1")
	return "otpauth://totp/" + label + "?" + v.Encode()
}

func (s *service) VerifyCode(secret, code string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    codeDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *service) ConfirmEnable(ctx context.Context, userID, code string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.TOTPSecret == "" {
		return fmt.Errorf("no pending totp secret: %w", domain.ErrBadRequest)
	}
	if !s.VerifyCode(u.TOTPSecret, code, time.Now()) {
		return fmt.Errorf("invalid totp code: %w", domain.ErrUnauthorized)
	}
	return s.users.Update(ctx, userID, map[string]interface{}{"totp_enabled": true})
}

func (s *service) VerifyLogin(ctx context.Context, userID, code string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !u.TOTPEnabled || u.TOTPSecret == "" {
		return fmt.Errorf("totp not enabled: %w", domain.ErrBadRequest)
	}
	if !s.VerifyCode(u.TOTPSecret, code, time.Now()) {
		return fmt.Errorf("invalid totp code: %w", domain.ErrUnauthorized)
	}
	return nil
}

func (s *service) Status(ctx context.Context, userID string) (bool, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.TOTPEnabled, nil
}

func (s *service) Disable(ctx context.Context, userID string) error {
	// Clear the secret as well so it cannot be replayed after re-enrollment.
	return s.users.Update(ctx, userID, map[string]interface{}{
		"totp_enabled": false,
		"totp_secret":  "",
	})
}
