package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-auth-api/internal/application/auth"
	"github.com/go-auth-api/internal/application/totp"
	"github.com/go-auth-api/internal/application/vault"
	"github.com/go-auth-api/internal/application/webauthn"
	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	vaultSvc := vault.NewService(deps.TokenRepo)
	totpSvc := totp.NewService(deps.UserRepo, cfg.TOTPIssuer)
	webauthnSvc := webauthn.NewService(deps.UserRepo, deps.ChallengeRepo, deps.CredentialRepo, cfg)
	authSvc := auth.NewService(deps.UserRepo, vaultSvc, deps.Mailer, deps.JWTProvider, totpSvc, deps.GoogleVerifier, cfg)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	totpH := handler.NewTOTPHandler(totpSvc)
	webauthnH := handler.NewWebAuthnHandler(webauthnSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.Route("/auth", func(r chi.Router) {
			r.With(sensitiveRL.Limit).Post("/register", authH.Register)
			r.With(sensitiveRL.Limit).Post("/login", authH.Login)
			r.With(sensitiveRL.Limit).Post("/google", authH.LoginWithGoogle)
			r.With(sensitiveRL.Limit).Post("/verify-email", authH.VerifyEmail)
			r.With(sensitiveRL.Limit).Post("/resend-verification", authH.ResendVerification)
			r.With(sensitiveRL.Limit).Post("/forgot-password", authH.ForgotPassword)
			r.With(sensitiveRL.Limit).Post("/reset-password", authH.ResetPassword)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/auth/me", authH.Me)
			r.Post("/auth/totp/verify", authH.VerifyTOTPLogin)

			r.Post("/totp/setup", totpH.Setup)
			r.Post("/totp/confirm", totpH.Confirm)
			r.Get("/totp/status", totpH.Status)
			r.Delete("/totp", totpH.Disable)

			r.Post("/webauthn/register/begin", webauthnH.BeginRegistration)
			r.Post("/webauthn/register/finish", webauthnH.FinishRegistration)
			r.Post("/webauthn/login/begin", webauthnH.BeginAuthentication)
			r.Post("/webauthn/login/finish", webauthnH.FinishAuthentication)
			r.Get("/webauthn/credentials", webauthnH.ListCredentials)
			r.Delete("/webauthn/credentials/{id}", webauthnH.DeleteCredential)

			if deps.Scheduler != nil {
				adminH := handler.NewAdminHandler(deps.Scheduler)
				r.With(appmiddleware.RequireRole(domain.RoleAdmin)).
					Post("/admin/cleanup", adminH.RunCleanup)
			}
		})
	})

	return r
}
