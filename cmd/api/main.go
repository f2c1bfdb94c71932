package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-auth-api/internal/application/cleanup"
	"github.com/go-auth-api/internal/application/vault"
	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/infrastructure/dynamo"
	"github.com/go-auth-api/internal/infrastructure/google"
	jwtinfra "github.com/go-auth-api/internal/infrastructure/jwt"
	"github.com/go-auth-api/internal/infrastructure/smtp"
	transporthttp "github.com/go-auth-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider is optional; routes fall back to unauthenticated mode if keys are missing.
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	mailer := smtp.NewMailer(cfg)
	googleVerifier := google.NewVerifier(cfg.GoogleClientID)

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	tokenRepo := dynamo.NewTokenRepo(dynamoClient, cfg.DynamoTables.Tokens)
	challengeRepo := dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.Challenges)
	credentialRepo := dynamo.NewCredentialRepo(dynamoClient, cfg.DynamoTables.Credentials)

	scheduler := cleanup.NewScheduler(vault.NewService(tokenRepo), challengeRepo)

	deps := &transporthttp.Deps{
		UserRepo:       userRepo,
		TokenRepo:      tokenRepo,
		ChallengeRepo:  challengeRepo,
		CredentialRepo: credentialRepo,
		Mailer:         mailer,
		JWTProvider:    jwtProvider,
		GoogleVerifier: googleVerifier,
		Scheduler:      scheduler,
	}

	router := transporthttp.NewRouter(cfg, deps)

	// Background retention sweeps for tokens and challenges.
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	scheduler.Start(sweepCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopSweeps()
	scheduler.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
