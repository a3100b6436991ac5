// Command mailer consumes queued confirmation mails from the broker and
// delivers them over SMTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go-contacts-api/internal/config"
	"go-contacts-api/internal/logger"
	"go-contacts-api/internal/mail"
)

func main() {
	cfg, err := config.LoadMailer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel))

	if err := run(cfg); err != nil {
		slog.Error("mailer failed", "error", err)
		os.Exit(1)
	}

	slog.Info("mailer stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := mail.DialConsumer(cfg.AMQPURL, cfg.AMQPQueue, cfg.MailWorkers)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Warn("close consumer", "error", err)
		}
	}()

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFromAddress(),
		FromName: cfg.MailFromName,
	})

	slog.Info("mailer starting", "queue", cfg.AMQPQueue, "smtp", cfg.MailServer)
	return consumer.Run(ctx, sender)
}
