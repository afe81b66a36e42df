// Воркер отправки кодов подтверждения email: читает очередь verification.code и отправляет письма по SMTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bioopay/backend/internal/app/sender"
	"github.com/bioopay/backend/internal/config"
	"github.com/bioopay/backend/internal/lib/rabbitmq"
	"github.com/bioopay/backend/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()

	level := slog.LevelDebug
	if cfg.Env == "prod" {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("worker", "verification-mailer"))

	logger.Info("starting verification mail worker",
		slog.String("env", cfg.Env),
		slog.String("queue", rabbitmq.VerificationQueue),
		slog.String("smtp_host", cfg.SMTPHost),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker, err := sender.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("verification mail worker init failed", sl.Err(err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil {
		logger.Error("verification mail worker stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("verification mail worker stopped")
}
