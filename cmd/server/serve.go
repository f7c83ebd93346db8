package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"familybudget/internal/handlers"
	"familybudget/internal/metrics"
	"familybudget/internal/security"
	"familybudget/internal/service"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.UsesInsecureSecret() {
		log.Warn("JWT_SECRET is the built-in development value; set a real secret in production")
	}

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return err
	}
	log.Info("Migrations completed successfully")

	m := metrics.New()

	emailService, err := service.NewEmailService(ctx, service.EmailConfig{
		AWSRegion:  cfg.AWSRegion,
		FromEmail:  cfg.SESFromEmail,
		FromName:   cfg.SESFromName,
		AppBaseURL: cfg.AppBaseURL,
		Debug:      cfg.EmailDebug,
	}, log, m)
	if err != nil {
		return err
	}

	tokens := security.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(db, tokens, log)
	familyService := service.NewFamilyService(db, log, m)
	membershipService := service.NewMembershipService(db, log, m)
	inviteService := service.NewInviteService(db, emailService, log, m)
	ledgerService := service.NewLedgerService(db, log, m)

	authHandler := handlers.NewAuthHandler(authService, log)
	if cfg.GoogleOAuthEnabled() {
		authHandler.ConfigureGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectBaseURL)
		log.Info("Google OAuth login enabled")
	}

	loginLimiter := security.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)

	router := &handlers.Router{
		Auth:       authHandler,
		Family:     handlers.NewFamilyHandler(familyService, membershipService, inviteService, log),
		Ledger:     handlers.NewLedgerHandler(ledgerService, log),
		Middleware: handlers.NewMiddleware(authService, log),
		LoginLimit: loginLimiter,
		Metrics:    m,
		DB:         db,
		Logger:     log,
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loginLimiter.Run(gctx, cfg.LoginRateWindow)
	})

	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Server stopped")
	return nil
}
