// Command alertwatch tails alert lifecycle events from NATS and logs them.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"esgwatch/internal/adapters/natsbus"
	"esgwatch/internal/services/alerts"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}
	subject := "esg.alerts.>"
	if len(os.Args) > 1 {
		subject = os.Args[1]
	}

	conn, err := natsbus.NewPublisher(url)
	if err != nil {
		logger.Error("failed to connect to nats", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	_, err = natsbus.Subscribe(conn.Conn, subject, func(evt alerts.Event) {
		logger.Info("alert event",
			slog.String("alert_id", evt.AlertID),
			slog.String("supplier_id", evt.SupplierID),
			slog.String("category", evt.Category),
			slog.String("severity", evt.Severity),
			slog.String("status", evt.Status),
			slog.Int64("version", evt.Version))
	})
	if err != nil {
		logger.Error("subscribe failed", slog.String("subject", subject), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("watching alert events", slog.String("subject", subject))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
