package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "esgwatch/internal/adapters/http"
	"esgwatch/internal/adapters/memory"
	"esgwatch/internal/adapters/natsbus"
	"esgwatch/internal/adapters/notifier"
	pg "esgwatch/internal/adapters/postgres"
	"esgwatch/internal/config"
	"esgwatch/internal/metrics"
	"esgwatch/internal/monitor"
	"esgwatch/internal/ports"
	"esgwatch/internal/services/alerts"
	"esgwatch/internal/services/compliance"
	"esgwatch/internal/services/dashboard"
	"esgwatch/internal/services/scanner"
	"esgwatch/internal/services/suppliers"
	scanworker "esgwatch/internal/workers/scanrunner"
)

// store is everything a storage backend provides.
type store interface {
	ports.SupplierRepository
	ports.AlertRepository
	ports.EmissionRepository
	ports.RuleRepository
	ports.JobRepository
}

var (
	_ store = (*pg.DB)(nil)
	_ store = (*memory.Store)(nil)
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoDatabase) {
		logger.Error("DATABASE_URL is required for postgres storage; set STORAGE=memory to run without a database")
		os.Exit(1)
	}
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics.InitMetrics()

	var st store
	switch cfg.Storage {
	case config.StorageMemory:
		st = memory.NewStore()
		logger.Warn("using in-memory storage; data is lost on restart")
	default:
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		st = db
	}

	rules, err := ruleSource(cfg, st)
	if err != nil {
		logger.Error("failed to load monitoring rules", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if loaded, err := rules.ListRules(ctx); err == nil {
		for _, r := range loaded {
			if err := monitor.CheckRule(r); err != nil {
				logger.Warn("monitoring rule will be skipped", slog.String("rule", r.Name), slog.String("error", err.Error()))
			}
		}
		for _, w := range monitor.ScaleWarnings(loaded) {
			logger.Warn("monitoring rule threshold scale", slog.String("warning", w))
		}
		logger.Info("monitoring rules loaded", slog.Int("count", len(loaded)))
	}

	var events ports.EventPublisher = ports.NopPublisher{}
	if cfg.NatsURL != "" {
		pub, err := natsbus.NewPublisher(cfg.NatsURL)
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pub.Close()
		events = pub
	}

	alertOpts := []alerts.Option{}
	if cfg.EscalationWebhookURL != "" {
		wcfg := notifier.DefaultConfig(cfg.EscalationWebhookURL)
		wcfg.Timeout = cfg.EscalationWebhookTimeout
		alertOpts = append(alertOpts, alerts.WithNotifier(notifier.NewWebhook(wcfg, logger)))
	}

	alertSvc := alerts.New(st, events, logger, alertOpts...)
	mon := monitor.New(cfg.ScanParallelism)
	mon.OnSupplier = func(supplierID string, drafts int) {
		logger.Debug("supplier evaluated", slog.String("supplier_id", supplierID), slog.Int("drafts", drafts))
	}
	compSvc := compliance.New(st, rules, alertSvc, mon, cfg.ScanTimeout, logger)
	processor := scanworker.ComplianceProcessor{Scanner: compSvc, Logger: logger}

	srv := httpadapter.New(httpadapter.Deps{
		Suppliers:  suppliers.New(st),
		Alerts:     alertSvc,
		Compliance: compSvc,
		Dashboard:  dashboard.New(st, st),
		Scanner:    scanner.New(st),
		Jobs:       st,
		Processor:  processor,
		Logger:     logger,
	})

	if cfg.ScanWorkers > 0 {
		scanworker.Run(ctx, st, processor, cfg.ScanWorkers, 500*time.Millisecond, logger)
		logger.Info("scan workers started", slog.Int("workers", cfg.ScanWorkers))
	}
	if cfg.ScanInterval > 0 {
		scanworker.Schedule(ctx, st, cfg.ScanInterval, logger)
		logger.Info("scan schedule started", slog.Duration("interval", cfg.ScanInterval))
	}

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("esgwatch listening", slog.String("addr", cfg.ListenAddr), slog.String("env", cfg.Env), slog.String("storage", cfg.Storage))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	alertSvc.WaitNotifications()
}

// ruleSource picks the rule set: a YAML file when configured, otherwise the
// database table, otherwise the built-in defaults.
func ruleSource(cfg config.Config, st store) (ports.RuleRepository, error) {
	if cfg.RulesFile != "" {
		loaded, err := monitor.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		return compliance.StaticRules(loaded), nil
	}
	if cfg.Storage == config.StorageMemory {
		return compliance.StaticRules(monitor.DefaultRules()), nil
	}
	return st, nil
}
