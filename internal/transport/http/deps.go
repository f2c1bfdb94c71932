package http

import (
	"github.com/go-auth-api/internal/application/cleanup"
	"github.com/go-auth-api/internal/infrastructure/dynamo"
	"github.com/go-auth-api/internal/infrastructure/google"
	jwtinfra "github.com/go-auth-api/internal/infrastructure/jwt"
	"github.com/go-auth-api/internal/infrastructure/smtp"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo       *dynamo.UserRepo
	TokenRepo      *dynamo.TokenRepo
	ChallengeRepo  *dynamo.ChallengeRepo
	CredentialRepo *dynamo.CredentialRepo
	Mailer         smtp.Mailer
	JWTProvider    *jwtinfra.Provider
	GoogleVerifier *google.Verifier
	Scheduler      *cleanup.Scheduler
}
