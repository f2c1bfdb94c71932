package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyPair(t *testing.T, dir string) (privPath, pubPath string) {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPath = filepath.Join(dir, "private.pem")
	pubPath = filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))
	return privPath, pubPath
}

func newProvider(t *testing.T, expiry time.Duration) *Provider {
	t.Helper()
	priv, pub := writeKeyPair(t, t.TempDir())
	p, err := NewProvider(&config.Config{
		JWTPrivateKeyPath: priv,
		JWTPublicKeyPath:  pub,
		JWTExpiry:         expiry,
	})
	require.NoError(t, err)
	return p
}

func TestSignAndVerify(t *testing.T) {
	p := newProvider(t, time.Hour)

	tok, err := p.Sign("u1", "alice", domain.RoleUser)
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, "u1", claims.Subject)
}

func TestVerify_Expired(t *testing.T) {
	p := newProvider(t, -time.Minute)

	tok, err := p.Sign("u1", "alice", domain.RoleUser)
	require.NoError(t, err)

	_, err = p.Verify(tok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

func TestVerify_Malformed(t *testing.T) {
	p := newProvider(t, time.Hour)

	_, err := p.Verify("not-a-jwt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestVerify_WrongKey(t *testing.T) {
	signer := newProvider(t, time.Hour)
	verifier := newProvider(t, time.Hour)

	tok, err := signer.Sign("u1", "alice", domain.RoleUser)
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
