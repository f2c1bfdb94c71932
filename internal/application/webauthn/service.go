package webauthn

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/domain"
	pkgtoken "github.com/go-auth-api/internal/pkg/token"
)

const challengeBytes = 32

// ErrNoCredentials is returned by BeginAuthentication for users without a
// registered authenticator.
var ErrNoCredentials = fmt.Errorf("no credentials registered: %w", domain.ErrNotFound)

// Service drives the two WebAuthn ceremonies. Each ceremony is a pair of
// calls bound by a short-lived single-use challenge.
//
// The attestation/assertion signatures are NOT cryptographically verified;
// only the challenge bookkeeping and the signature-counter invariant are
// enforced. Production deployments must add full verification.
type Service interface {
	BeginRegistration(ctx context.Context, userID string) (*RegistrationOptions, error)
	FinishRegistration(ctx context.Context, userID string, resp *CredentialResponse, label string) error
	BeginAuthentication(ctx context.Context, userID string) (*AuthenticationOptions, error)
	FinishAuthentication(ctx context.Context, userID string, resp *CredentialResponse) (*domain.User, error)
	Credentials(ctx context.Context, userID string) ([]domain.Credential, error)
	DeleteCredential(ctx context.Context, userID, credentialID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type challengeStore interface {
	Put(ctx context.Context, c *domain.Challenge) error
	Get(ctx context.Context, challenge string) (*domain.Challenge, error)
	MarkUsed(ctx context.Context, challenge string) error
}

type credentialStore interface {
	Put(ctx context.Context, c *domain.Credential) error
	Get(ctx context.Context, credentialID string) (*domain.Credential, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Credential, error)
	UpdateSignCount(ctx context.Context, credentialID string, newCount uint32, usedAt time.Time) error
	Delete(ctx context.Context, credentialID string) error
}

type service struct {
	users        userStore
	challenges   challengeStore
	credentials  credentialStore
	rp           RelyingParty
	challengeTTL time.Duration
}

func NewService(users userStore, challenges challengeStore, credentials credentialStore, cfg *config.Config) Service {
	return &service{
		users:       users,
		challenges:  challenges,
		credentials: credentials,
		rp: RelyingParty{
			ID:   cfg.RelyingPartyID,
			Name: cfg.RelyingPartyName,
		},
		challengeTTL: cfg.ChallengeTTL,
	}
}

func (s *service) BeginRegistration(ctx context.Context, userID string) (*RegistrationOptions, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	challenge, err := s.issueChallenge(ctx, userID, domain.CeremonyRegistration)
	if err != nil {
		return nil, err
	}

	existing, err := s.credentials.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := make([]CredentialDescriptor, 0, len(existing))
	for _, c := range existing {
		exclude = append(exclude, CredentialDescriptor{Type: "public-key", ID: c.CredentialID})
	}

	return &RegistrationOptions{
		Challenge: challenge,
		RP:        s.rp,
		User: UserEntity{
			ID:          base64.RawURLEncoding.EncodeToString([]byte(u.UserID)),
			Name:        u.Email,
			DisplayName: u.Username,
		},
		PubKeyCredParams: []PubKeyCredParam{
			{Type: "public-key", Alg: algES256},
			{Type: "public-key", Alg: algRS256},
		},
		Timeout:     ceremonyTimeoutMillis,
		Attestation: "none",
		AuthenticatorSelection: AuthenticatorSelection{
			RequireResidentKey: false,
			ResidentKey:        "preferred",
			UserVerification:   "preferred",
		},
		ExcludeCredentials: exclude,
	}, nil
}

func (s *service) FinishRegistration(ctx context.Context, userID string, resp *CredentialResponse, label string) error {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return err
	}
	if resp.ID == "" || resp.Response.AttestationObject == "" {
		return fmt.Errorf("incomplete credential response: %w", domain.ErrBadRequest)
	}
	if err := s.consumeChallenge(ctx, userID, resp, domain.CeremonyRegistration); err != nil {
		return err
	}

	now := time.Now().UTC()
	cred := &domain.Credential{
		CredentialID: resp.ID,
		UserID:       userID,
		PublicKey:    resp.Response.AttestationObject, // attestation material kept for later verification
		SignCount:    0,
		Name:         label,
		Transports:   resp.Response.Transports,
		AAGUID:       "00000000-0000-0000-0000-000000000000",
		CreatedAt:    now,
		LastUsedAt:   now,
	}
	if err := s.credentials.Put(ctx, cred); err != nil {
		return err
	}
	slog.Info("webauthn credential registered", "user_id", userID, "credential_id", resp.ID)
	return nil
}

func (s *service) BeginAuthentication(ctx context.Context, userID string) (*AuthenticationOptions, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	creds, err := s.credentials.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	challenge, err := s.issueChallenge(ctx, userID, domain.CeremonyAuthentication)
	if err != nil {
		return nil, err
	}

	allow := make([]CredentialDescriptor, 0, len(creds))
	for _, c := range creds {
		allow = append(allow, CredentialDescriptor{
			Type:       "public-key",
			ID:         c.CredentialID,
			Transports: c.Transports,
		})
	}
	return &AuthenticationOptions{
		Challenge:        challenge,
		RPID:             s.rp.ID,
		Timeout:          ceremonyTimeoutMillis,
		AllowCredentials: allow,
		UserVerification: "preferred",
	}, nil
}

func (s *service) FinishAuthentication(ctx context.Context, userID string, resp *CredentialResponse) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	cred, err := s.credentials.Get(ctx, resp.ID)
	if err != nil {
		return nil, err
	}
	if cred.UserID != userID {
		return nil, fmt.Errorf("credential not found: %w", domain.ErrNotFound)
	}

	if err := s.consumeChallenge(ctx, userID, resp, domain.CeremonyAuthentication); err != nil {
		return nil, err
	}

	// The counter must strictly advance; a stale counter means a cloned or
	// replayed authenticator. When the response carries no authenticator
	// data the stored counter is bumped by one.
	newCount, ok := signCountFromResponse(resp)
	if !ok {
		newCount = cred.SignCount + 1
	} else if newCount <= cred.SignCount {
		return nil, fmt.Errorf("signature counter did not advance: %w", domain.ErrAlreadyUsed)
	}
	if err := s.credentials.UpdateSignCount(ctx, cred.CredentialID, newCount, time.Now()); err != nil {
		return nil, err
	}
	slog.Info("webauthn authentication succeeded", "user_id", userID, "credential_id", cred.CredentialID)
	return u, nil
}

func (s *service) Credentials(ctx context.Context, userID string) ([]domain.Credential, error) {
	return s.credentials.ListByUser(ctx, userID)
}

func (s *service) DeleteCredential(ctx context.Context, userID, credentialID string) error {
	cred, err := s.credentials.Get(ctx, credentialID)
	if err != nil {
		return err
	}
	if cred.UserID != userID {
		return fmt.Errorf("credential not found: %w", domain.ErrNotFound)
	}
	return s.credentials.Delete(ctx, credentialID)
}

func (s *service) issueChallenge(ctx context.Context, userID, ceremony string) (string, error) {
	value, err := pkgtoken.New(challengeBytes)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	c := &domain.Challenge{
		Challenge: value,
		UserID:    userID,
		Ceremony:  ceremony,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.challengeTTL).Unix(),
		Used:      false,
	}
	if err := s.challenges.Put(ctx, c); err != nil {
		return "", err
	}
	return value, nil
}

// consumeChallenge resolves the challenge embedded in the client response,
// checks ownership, ceremony type, expiry and the used flag, then consumes it
// via the store's compare-and-set so a replayed response cannot win twice.
func (s *service) consumeChallenge(ctx context.Context, userID string, resp *CredentialResponse, ceremony string) error {
	value, err := challengeFromResponse(resp)
	if err != nil {
		return err
	}
	c, err := s.challenges.Get(ctx, value)
	if err != nil {
		return err
	}
	if c.UserID != userID || c.Ceremony != ceremony {
		return fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	if time.Now().Unix() >= c.ExpiresAt {
		return fmt.Errorf("challenge expired: %w", domain.ErrExpired)
	}
	if c.Used {
		return fmt.Errorf("challenge already used: %w", domain.ErrAlreadyUsed)
	}
	return s.challenges.MarkUsed(ctx, value)
}
