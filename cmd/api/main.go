package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opsdesk_backend/internal/automation"
	"opsdesk_backend/internal/channels"
	channelrepo "opsdesk_backend/internal/channels/repository"
	apphttp "opsdesk_backend/internal/http"
	"opsdesk_backend/internal/http/router"
	"opsdesk_backend/internal/messaging"
	"opsdesk_backend/platform/config"
	"opsdesk_backend/platform/db"
	"opsdesk_backend/platform/logger"
	"opsdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	accounts := channelrepo.New(pool)

	smsDefault := channels.TwilioCredentials{
		AccountSID: cfg.GetTwilioAccountSID(),
		AuthToken:  cfg.GetTwilioAuthToken(),
		FromNumber: cfg.GetTwilioFromNumber(),
	}
	channelRouter := channels.NewRouter(
		accounts,
		channels.NewGmailProvider(cfg, accounts, log),
		channels.NewSMTPProvider(log),
		channels.NewTwilioProvider(cfg, log),
		smsDefault,
		log,
	)

	messagingModule := messaging.NewModule(pool, accounts, cfg, log)
	automationModule := automation.NewModule(
		pool,
		channelRouter,
		messagingModule.Repository(),
		messagingModule.Repository(),
		val,
		log,
	)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			automationModule,
			messagingModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < attempts {
			delay := baseDelay * time.Duration(attempt)
			log.Warn("retrying after failure", "operation", name, "attempt", attempt, "delay", delay.String(), "error", lastErr.Error())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
