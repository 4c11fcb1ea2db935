package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"esgwatch/internal/domain"
	"esgwatch/internal/metrics"
	"esgwatch/internal/monitor"
	"esgwatch/internal/ports"
)

// Admitter turns scan drafts into stored alerts.
type Admitter interface {
	AdmitAll(ctx context.Context, drafts []domain.AlertDraft) (created int, existing int, err error)
}

// StaticRules serves a fixed rule set, typically loaded from a YAML file.
type StaticRules []domain.MonitoringRule

func (r StaticRules) ListRules(context.Context) ([]domain.MonitoringRule, error) {
	return append([]domain.MonitoringRule(nil), r...), nil
}

// Report describes one finished scan.
type Report struct {
	Evaluated  int
	Drafts     int
	Created    int
	Existing   int
	Partial    bool
	RuleErrors []domain.RuleError
	Warnings   []string
	Duration   time.Duration
}

// Summary is the part of the report stored on a scan run.
func (r Report) Summary() ports.ScanSummary {
	return ports.ScanSummary{
		Evaluated:  r.Evaluated,
		Drafts:     r.Drafts,
		Admitted:   r.Created,
		Partial:    r.Partial,
		RuleErrors: r.RuleErrors,
		Warnings:   r.Warnings,
	}
}

// Service runs compliance scans over the active suppliers.
type Service struct {
	suppliers ports.SupplierRepository
	rules     ports.RuleRepository
	admitter  Admitter
	monitor   *monitor.Monitor
	timeout   time.Duration
	logger    *slog.Logger
}

func New(suppliers ports.SupplierRepository, rules ports.RuleRepository, admitter Admitter, m *monitor.Monitor, timeout time.Duration, logger *slog.Logger) *Service {
	if m == nil {
		m = monitor.New(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		suppliers: suppliers,
		rules:     rules,
		admitter:  admitter,
		monitor:   m,
		timeout:   timeout,
		logger:    logger,
	}
}

// RunScan evaluates every enabled rule against every active supplier and
// admits the resulting drafts. A scan cut short by its timeout still admits
// what it found and reports Partial.
func (s *Service) RunScan(ctx context.Context) (Report, error) {
	started := time.Now()

	snapshots, err := s.suppliers.ListActiveSuppliers(ctx)
	if err != nil {
		metrics.RecordScan("failed", time.Since(started), 0)
		return Report{}, fmt.Errorf("list suppliers: %w", err)
	}
	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		metrics.RecordScan("failed", time.Since(started), 0)
		return Report{}, fmt.Errorf("list rules: %w", err)
	}

	scanCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, runErr := s.monitor.Run(scanCtx, snapshots, rules)
	// only the scan timeout yields a partial result; caller cancellation fails
	if runErr != nil && ctx.Err() != nil {
		metrics.RecordScan("failed", time.Since(started), len(res.Errors))
		return Report{}, runErr
	}

	for _, re := range res.Errors {
		s.logger.Warn("rule evaluation failed",
			slog.String("rule", re.Rule),
			slog.String("reason", re.Reason))
	}

	report := Report{
		Evaluated:  res.Evaluated,
		Drafts:     len(res.Drafts),
		Partial:    res.Partial,
		RuleErrors: res.Errors,
		Warnings:   res.Warnings,
	}
	created, existing, admitErr := s.admitter.AdmitAll(ctx, res.Drafts)
	report.Created = created
	report.Existing = existing
	report.Duration = time.Since(started)

	outcome := "completed"
	switch {
	case admitErr != nil:
		outcome = "failed"
	case report.Partial:
		outcome = "partial"
	}
	metrics.RecordScan(outcome, report.Duration, len(report.RuleErrors))

	s.logger.Info("compliance scan finished",
		slog.String("outcome", outcome),
		slog.Int("suppliers", len(snapshots)),
		slog.Int("evaluated", report.Evaluated),
		slog.Int("drafts", report.Drafts),
		slog.Int("created", report.Created),
		slog.Int("existing", report.Existing),
		slog.Int("rule_errors", len(report.RuleErrors)),
		slog.Duration("duration", report.Duration))

	if admitErr != nil {
		return report, fmt.Errorf("admit drafts: %w", admitErr)
	}
	return report, nil
}

// Preview evaluates rules against the given snapshots without admitting
// anything. Nil rules means the configured rule set.
func (s *Service) Preview(ctx context.Context, snapshots []domain.SupplierSnapshot, rules []domain.MonitoringRule) (monitor.Result, error) {
	if rules == nil {
		var err error
		rules, err = s.rules.ListRules(ctx)
		if err != nil {
			return monitor.Result{}, fmt.Errorf("list rules: %w", err)
		}
	}
	return s.monitor.Run(ctx, snapshots, rules)
}
