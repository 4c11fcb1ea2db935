package dashboard

import (
	"context"
	"fmt"
	"time"

	"esgwatch/internal/domain"
	"esgwatch/internal/ports"
)

// Service computes dashboard figures and emission trends.
type Service struct {
	alerts    ports.AlertRepository
	emissions ports.EmissionRepository
	now       func() time.Time
}

func New(alerts ports.AlertRepository, emissions ports.EmissionRepository) *Service {
	return &Service{alerts: alerts, emissions: emissions, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Metrics aggregates alerts detected inside window.
func (s *Service) Metrics(ctx context.Context, window domain.DateRange) (domain.DashboardMetrics, error) {
	all, err := s.alerts.ListAlerts(ctx, domain.AlertFilter{Detected: window})
	if err != nil {
		return domain.DashboardMetrics{}, fmt.Errorf("list alerts: %w", err)
	}
	return domain.ComputeDashboard(all, window, s.now()), nil
}

// EmissionTrend is the monthly series for a supplier, or for all suppliers
// when supplierID is empty, with its fitted trend.
type EmissionTrend struct {
	Samples []domain.EmissionSample
	Trend   domain.TrendResult
}

func (s *Service) EmissionTrend(ctx context.Context, supplierID string, window domain.DateRange) (EmissionTrend, error) {
	samples, err := s.emissions.MonthlyEmissionTotals(ctx, supplierID, window)
	if err != nil {
		return EmissionTrend{}, fmt.Errorf("monthly emissions: %w", err)
	}
	return EmissionTrend{
		Samples: samples,
		Trend:   domain.ComputeTrend(domain.EmissionTotals(samples)),
	}, nil
}

// RecordEmission stores one footprint entry for a supplier.
func (s *Service) RecordEmission(ctx context.Context, supplierID string, at time.Time, amount float64) error {
	if supplierID == "" {
		return &domain.ValidationError{Field: "supplierId", Problem: "required"}
	}
	if amount < 0 {
		return &domain.ValidationError{Field: "amount", Problem: "must not be negative"}
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.emissions.RecordEmission(ctx, supplierID, at, amount)
}
