package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/infrastructure/google"
	"github.com/go-auth-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// LoginResult is what a successful credential check yields. When the account
// has TOTP enabled the token is only provisional until VerifyTOTPLogin
// confirms the second factor.
type LoginResult struct {
	Token        string       `json:"token"`
	TOTPRequired bool         `json:"totp_required"`
	User         *domain.User `json:"user"`
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	VerifyTOTPLogin(ctx context.Context, userID, code string) (*LoginResult, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error)

	Me(ctx context.Context, userID string) (*domain.User, error)

	VerifyEmail(ctx context.Context, token string) (*LoginResult, error)
	ResendVerification(ctx context.Context, email string) error

	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req domain.PasswordResetRequest) error
}

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type tokenVault interface {
	Issue(ctx context.Context, userID, purpose string, ttl time.Duration) (string, error)
	Redeem(ctx context.Context, token, purpose string) (string, error)
}

type mailer interface {
	SendVerificationEmail(to, username, link string) error
	SendPasswordResetEmail(to, username, link string) error
}

type tokenSigner interface {
	Sign(userID, username, role string) (string, error)
}

type totpVerifier interface {
	VerifyLogin(ctx context.Context, userID, code string) error
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

type service struct {
	users       userStore
	vault       tokenVault
	mailer      mailer
	signer      tokenSigner
	totp        totpVerifier
	google      googleVerifier
	verifyTTL   time.Duration
	resetTTL    time.Duration
	frontendURL string
}

func NewService(
	users userStore,
	vault tokenVault,
	mailer mailer,
	signer tokenSigner,
	totp totpVerifier,
	google googleVerifier,
	cfg *config.Config,
) Service {
	return &service{
		users:       users,
		vault:       vault,
		mailer:      mailer,
		signer:      signer,
		totp:        totp,
		google:      google,
		verifyTTL:   cfg.VerifyTokenTTL,
		resetTTL:    cfg.ResetTokenTTL,
		frontendURL: cfg.FrontendURL,
	}
}

// Register creates a disabled account and mails a single-use verification
// link. The account stays unusable until VerifyEmail redeems the token.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Enabled:      false,
		AuthProvider: "local",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	if err := s.sendVerification(ctx, u); err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", u.UserID, "username", u.Username)
	return u, nil
}

// Login checks the password. Credential failures and unknown usernames are
// reported identically to avoid account enumeration.
func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if !u.Enabled {
		return nil, fmt.Errorf("account not verified: %w", domain.ErrAccountDisabled)
	}

	token, err := s.signer.Sign(u.UserID, u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, TOTPRequired: u.TOTPEnabled, User: u}, nil
}

// VerifyTOTPLogin proves the second factor after a password login and issues
// a fresh session token.
func (s *service) VerifyTOTPLogin(ctx context.Context, userID, code string) (*LoginResult, error) {
	if err := s.totp.VerifyLogin(ctx, userID, code); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	token, err := s.signer.Sign(u.UserID, u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: u}, nil
}

// LoginWithGoogle signs in with a verified Google ID token, creating the
// account on first sight. Google accounts skip email verification because
// Google already attests the address.
func (s *service) LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error) {
	p, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if !p.EmailVerified {
		return nil, fmt.Errorf("google account email not verified: %w", domain.ErrUnauthorized)
	}

	u, err := s.users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if !u.Enabled {
			return nil, fmt.Errorf("account disabled: %w", domain.ErrAccountDisabled)
		}
		if u.GoogleSub == "" {
			if err := s.users.Update(ctx, u.UserID, map[string]interface{}{"google_sub": p.Sub}); err != nil {
				return nil, err
			}
			u.GoogleSub = p.Sub
		}
	case errors.Is(err, domain.ErrNotFound):
		now := time.Now().UTC()
		u = &domain.User{
			UserID:       id.New(),
			Username:     p.Email,
			Email:        p.Email,
			Role:         domain.RoleUser,
			Enabled:      true,
			AuthProvider: "google",
			GoogleSub:    p.Sub,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.users.Put(ctx, u); err != nil {
			return nil, err
		}
		slog.Info("user created via google sign-in", "user_id", u.UserID)
	default:
		return nil, err
	}

	token, err := s.signer.Sign(u.UserID, u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, TOTPRequired: u.TOTPEnabled, User: u}, nil
}

func (s *service) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.Get(ctx, userID)
}

// VerifyEmail redeems the verification token, enables the account and signs
// the user straight in.
func (s *service) VerifyEmail(ctx context.Context, token string) (*LoginResult, error) {
	userID, err := s.vault.Redeem(ctx, token, domain.PurposeEmailVerify)
	if err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, userID, map[string]interface{}{"enabled": true}); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Enabled = true
	signed, err := s.signer.Sign(u.UserID, u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	slog.Info("email verified", "user_id", userID)
	return &LoginResult{Token: signed, User: u}, nil
}

// ResendVerification issues a fresh verification token, invalidating the
// previous one. Unknown and already-verified emails are silent no-ops so the
// endpoint reveals nothing about registered addresses.
func (s *service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if u.Enabled {
		return nil
	}
	return s.sendVerification(ctx, u)
}

// ForgotPassword mails a reset link. Unknown and unverified emails are
// silent no-ops, same reasoning as ResendVerification.
func (s *service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !u.Enabled {
		return nil
	}
	token, err := s.vault.Issue(ctx, u.UserID, domain.PurposePasswordReset, s.resetTTL)
	if err != nil {
		return err
	}
	link := s.frontendURL + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordResetEmail(u.Email, u.Username, link); err != nil {
		slog.Warn("failed to send password reset email", "user_id", u.UserID, "err", err)
	}
	return nil
}

// ResetPassword redeems the reset token and stores the new password hash.
// Reusing the current password is rejected.
func (s *service) ResetPassword(ctx context.Context, req domain.PasswordResetRequest) error {
	userID, err := s.vault.Redeem(ctx, req.Token, domain.PurposePasswordReset)
	if err != nil {
		return err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.NewPassword)) == nil {
		return fmt.Errorf("new password must differ from the current one: %w", domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, userID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		return err
	}
	slog.Info("password reset", "user_id", userID)
	return nil
}

func (s *service) sendVerification(ctx context.Context, u *domain.User) error {
	token, err := s.vault.Issue(ctx, u.UserID, domain.PurposeEmailVerify, s.verifyTTL)
	if err != nil {
		return err
	}
	link := s.frontendURL + "/verify-email?token=" + token
	if err := s.mailer.SendVerificationEmail(u.Email, u.Username, link); err != nil {
		slog.Warn("failed to send verification email", "user_id", u.UserID, "err", err)
	}
	return nil
}
