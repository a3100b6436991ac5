package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"go-contacts-api/internal/auth"
	"go-contacts-api/internal/config"
	"go-contacts-api/internal/database"
	"go-contacts-api/internal/handler"
	"go-contacts-api/internal/mail"
	"go-contacts-api/internal/metrics"
	"go-contacts-api/internal/middleware"
	"go-contacts-api/internal/repository"
	"go-contacts-api/internal/router"
	"go-contacts-api/internal/service"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	cleanupFuncs []func(ctx context.Context)
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.onShutdown(func(context.Context) { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		a.cleanup(ctx)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	accountRepo := repository.NewAccountRepository(db.Pool)
	contactRepo := repository.NewContactRepository(db.Pool)
	auditRepo := repository.NewAuditRepository(db.Pool)
	slog.Info("database ready")

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Algorithm:  cfg.JWTAlgorithm,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
		VerifyTTL:  cfg.JWTVerifyTTL,
	})
	if err != nil {
		a.cleanup(ctx)
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	appMetrics := metrics.New()

	sender, err := a.mailSender(cfg)
	if err != nil {
		a.cleanup(ctx)
		return nil, fmt.Errorf("failed to initialize mail transport: %w", err)
	}
	dispatcher := mail.NewDispatcher(sender, mail.DispatcherOptions{
		Transport: cfg.MailTransport,
		Workers:   cfg.MailWorkers,
		QueueSize: cfg.MailQueueSize,
		Metrics:   appMetrics,
	})
	// Registered after the transport, so queued mail drains before the
	// transport closes.
	a.onShutdown(func(ctx context.Context) {
		if err := dispatcher.Close(ctx); err != nil {
			slog.Warn("mail queue not drained", "error", err)
		}
	})

	contactsLimiter, err := a.contactsLimiter(ctx, cfg)
	if err != nil {
		a.cleanup(ctx)
		return nil, err
	}

	auditService := service.NewAuditService(auditRepo, appMetrics)
	authService := service.NewAuthService(accountRepo, auth.NewPasswordHasher(cfg.BcryptCost), tokens, dispatcher, auditService, cfg.AppBaseURL)
	contactService := service.NewContactService(contactRepo, cfg.BirthdayWindowDays)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), contactsLimiter, appMetrics, router.Handlers{
		Auth: handler.NewAuthHandler(authService),
		Contacts: handler.NewContactHandler(contactService, handler.ListLimits{
			Default: cfg.ContactsLimitDefault,
			Min:     cfg.ContactsLimitMin,
			Max:     cfg.ContactsLimitMax,
		}),
		Health: handler.NewHealthHandler(db),
		Docs:   handler.NewDocsHandler(cfg.DocsPath),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) mailSender(cfg *config.Config) (mail.Sender, error) {
	switch cfg.MailTransport {
	case config.MailTransportSMTP:
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.MailServer,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailFromAddress(),
			FromName: cfg.MailFromName,
		}), nil
	case config.MailTransportAMQP:
		publisher, err := mail.DialPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, err
		}
		a.onShutdown(func(context.Context) {
			if err := publisher.Close(); err != nil {
				slog.Warn("close amqp publisher", "error", err)
			}
		})
		slog.Info("mail published to broker", "queue", cfg.AMQPQueue)
		return publisher, nil
	default:
		slog.Warn("mail transport is log; confirmation links are only written to the log")
		return mail.LogSender{}, nil
	}
}

// contactsLimiter is shared through Redis when REDIS_HOST is set and local to
// the process otherwise.
func (a *App) contactsLimiter(ctx context.Context, cfg *config.Config) (middleware.WindowLimiter, error) {
	addr := cfg.RedisAddr()
	if addr == "" {
		return middleware.NewMemoryWindowLimiter(cfg.ContactsRateLimit, cfg.ContactsRateWindow), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	a.onShutdown(func(context.Context) { _ = client.Close() })

	slog.Info("redis rate limiter ready", "addr", addr)
	return middleware.NewRedisWindowLimiter(client, cfg.ContactsRateLimit, cfg.ContactsRateWindow), nil
}

func (a *App) onShutdown(fn func(ctx context.Context)) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

// cleanup runs registered functions in reverse order of registration.
func (a *App) cleanup(ctx context.Context) {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i](ctx)
	}
}

// Run serves until SIGINT or SIGTERM, then shuts the server down and releases
// every resource.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.cleanup(shutdownCtx)

	slog.Info("server stopped")
	return runErr
}
