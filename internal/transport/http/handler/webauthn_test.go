package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-auth-api/internal/application/webauthn"
	"github.com/go-auth-api/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockWebAuthnSvc struct{ mock.Mock }

func (m *mockWebAuthnSvc) BeginRegistration(ctx context.Context, userID string) (*webauthn.RegistrationOptions, error) {
	args := m.Called(ctx, userID)
	if o, _ := args.Get(0).(*webauthn.RegistrationOptions); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWebAuthnSvc) FinishRegistration(ctx context.Context, userID string, resp *webauthn.CredentialResponse, label string) error {
	return m.Called(ctx, userID, resp, label).Error(0)
}

func (m *mockWebAuthnSvc) BeginAuthentication(ctx context.Context, userID string) (*webauthn.AuthenticationOptions, error) {
	args := m.Called(ctx, userID)
	if o, _ := args.Get(0).(*webauthn.AuthenticationOptions); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWebAuthnSvc) FinishAuthentication(ctx context.Context, userID string, resp *webauthn.CredentialResponse) (*domain.User, error) {
	args := m.Called(ctx, userID, resp)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWebAuthnSvc) Credentials(ctx context.Context, userID string) ([]domain.Credential, error) {
	args := m.Called(ctx, userID)
	if c, _ := args.Get(0).([]domain.Credential); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWebAuthnSvc) DeleteCredential(ctx context.Context, userID, credentialID string) error {
	return m.Called(ctx, userID, credentialID).Error(0)
}

func TestBeginRegistration_MissingClaims(t *testing.T) {
	h := NewWebAuthnHandler(&mockWebAuthnSvc{})
	r := httptest.NewRequest(http.MethodPost, "/v1/webauthn/register/begin", nil)
	rr := httptest.NewRecorder()
	h.BeginRegistration(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBeginAuthentication_NoCredentials(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockWebAuthnSvc{}
	svc.On("BeginAuthentication", mock.Anything, "u1").Return(nil, webauthn.ErrNoCredentials)
	h := NewWebAuthnHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/webauthn/login/begin", "u1", nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, h.BeginAuthentication, rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListCredentials(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockWebAuthnSvc{}
	svc.On("Credentials", mock.Anything, "u1").Return([]domain.Credential{
		{CredentialID: "cred1", UserID: "u1", Name: "laptop", CreatedAt: time.Now()},
	}, nil)
	h := NewWebAuthnHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/webauthn/credentials", "u1", nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, h.ListCredentials, rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "laptop")
}

func TestDeleteCredential(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockWebAuthnSvc{}
	svc.On("DeleteCredential", mock.Anything, "u1", "cred1").Return(nil)
	h := NewWebAuthnHandler(svc)

	r := bearerReq(t, p, http.MethodDelete, "/v1/webauthn/credentials/cred1", "u1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "cred1")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	serveAuthed(p, h.DeleteCredential, rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestDeleteCredential_Foreign(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockWebAuthnSvc{}
	svc.On("DeleteCredential", mock.Anything, "u1", "cred1").Return(domain.ErrNotFound)
	h := NewWebAuthnHandler(svc)

	r := bearerReq(t, p, http.MethodDelete, "/v1/webauthn/credentials/cred1", "u1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "cred1")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	serveAuthed(p, h.DeleteCredential, rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
