package ports

import (
	"context"
	"time"

	"esgwatch/internal/domain"
)

// SupplierRepository stores suppliers and serves the snapshots scans consume.
type SupplierRepository interface {
	ListActiveSuppliers(ctx context.Context) ([]domain.SupplierSnapshot, error)
	GetSupplier(ctx context.Context, id string) (domain.Supplier, error)
	SaveSupplier(ctx context.Context, s domain.Supplier) error
}

// AlertRepository persists compliance alerts. UpdateAlert is a compare-and-swap
// on Version and returns domain.ErrStaleVersion when it loses.
type AlertRepository interface {
	GetAlert(ctx context.Context, id string) (domain.ComplianceAlert, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.ComplianceAlert, error)
	// ListAlertViews is ListAlerts with the owning supplier loaded when
	// withSupplier is set.
	ListAlertViews(ctx context.Context, filter domain.AlertFilter, withSupplier bool) ([]domain.AlertView, error)
	// AdmitAlert inserts a when no open alert exists for its supplier and
	// category; otherwise it returns the existing open alert and created=false.
	AdmitAlert(ctx context.Context, a domain.ComplianceAlert) (stored domain.ComplianceAlert, created bool, err error)
	UpdateAlert(ctx context.Context, a domain.ComplianceAlert, expectedVersion int64) (domain.ComplianceAlert, error)
}

// EmissionRepository stores raw emission records and serves monthly totals.
// An empty supplierID aggregates every supplier.
type EmissionRepository interface {
	RecordEmission(ctx context.Context, supplierID string, at time.Time, amount float64) error
	MonthlyEmissionTotals(ctx context.Context, supplierID string, window domain.DateRange) ([]domain.EmissionSample, error)
}

// RuleRepository serves the configured monitoring rules.
type RuleRepository interface {
	ListRules(ctx context.Context) ([]domain.MonitoringRule, error)
}
