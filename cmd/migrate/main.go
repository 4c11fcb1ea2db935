package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	pg "esgwatch/internal/adapters/postgres"
	"esgwatch/internal/monitor"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	status := flag.Bool("status", false, "print migration status instead of migrating")
	seedRules := flag.String("seed-rules", "", "YAML rule file to upsert into monitoring_rules after migrating")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	ctx := context.Background()

	if *status {
		if err := pg.MigrationStatus(ctx, dsn); err != nil {
			logger.Error("migration status failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if err := pg.Migrate(ctx, dsn); err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	if *seedRules == "" {
		return
	}
	rules, err := monitor.LoadRules(*seedRules)
	if err != nil {
		logger.Error("failed to load rules", slog.String("file", *seedRules), slog.String("error", err.Error()))
		os.Exit(1)
	}
	now := time.Now()
	for i := range rules {
		rules[i].ID = uuid.NewString()
		rules[i].Touch(now)
	}
	db, err := pg.Connect(ctx, dsn)
	if err != nil {
		logger.Error("db connect error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	if err := db.SaveRules(ctx, rules); err != nil {
		logger.Error("failed to seed rules", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, w := range monitor.ScaleWarnings(rules) {
		logger.Warn("monitoring rule threshold scale", slog.String("warning", w))
	}
	logger.Info("rules seeded", slog.Int("count", len(rules)))
}
