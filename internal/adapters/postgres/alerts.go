package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"esgwatch/internal/domain"
)

const alertColumns = `id, supplier_id, rule_name, title, description, severity, category, status,
	detected_at, due_date, threshold_value, actual_value,
	resolved_at, resolved_by, resolution_notes,
	escalated_at, escalated_to, escalation_reason,
	requires_follow_up, follow_up_date, version, created_at, updated_at, deleted`

func scanAlert(row pgx.Row) (domain.ComplianceAlert, error) {
	var (
		a        domain.ComplianceAlert
		severity string
		status   string
	)
	err := row.Scan(&a.ID, &a.SupplierID, &a.RuleName, &a.Title, &a.Description, &severity, &a.Category, &status,
		&a.DetectedAt, &a.DueDate, &a.ThresholdValue, &a.ActualValue,
		&a.ResolvedAt, &a.ResolvedBy, &a.ResolutionNotes,
		&a.EscalatedAt, &a.EscalatedTo, &a.EscalationReason,
		&a.RequiresFollowUp, &a.FollowUpDate, &a.Version, &a.CreatedAt, &a.UpdatedAt, &a.Deleted)
	if err != nil {
		return domain.ComplianceAlert{}, err
	}
	if a.Severity, err = domain.ParseSeverity(severity); err != nil {
		return domain.ComplianceAlert{}, err
	}
	if a.Status, err = domain.ParseAlertStatus(status); err != nil {
		return domain.ComplianceAlert{}, err
	}
	return a, nil
}

func collectAlerts(rows pgx.Rows) ([]domain.ComplianceAlert, error) {
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ComplianceAlert, error) { return scanAlert(r) })
}

func (db *DB) GetAlert(ctx context.Context, id string) (domain.ComplianceAlert, error) {
	a, err := scanAlert(db.Pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM compliance_alerts WHERE id = $1 AND NOT deleted`, id))
	if err != nil {
		return domain.ComplianceAlert{}, notFound(err, "alert", id)
	}
	return a, nil
}

var alertOrder = map[domain.AlertSortKey]string{
	domain.SortByDetectedAt: "detected_at",
	domain.SortByDueDate:    "due_date",
	domain.SortBySeverity:   "CASE severity WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 ELSE 3 END",
	domain.SortByStatus:     "CASE status WHEN 'open' THEN 0 WHEN 'in_progress' THEN 1 WHEN 'escalated' THEN 2 WHEN 'resolved' THEN 3 ELSE 4 END",
	domain.SortBySupplier:   "supplier_id",
}

// ListAlerts pushes the filter, ordering and paging into SQL.
func (db *DB) ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.ComplianceAlert, error) {
	where := []string{"NOT deleted"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.SupplierID != "" {
		where = append(where, "supplier_id = "+arg(f.SupplierID))
	}
	if len(f.Statuses) > 0 {
		st := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			st[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(st)+")")
	}
	if f.Severity != nil {
		where = append(where, "severity = "+arg(f.Severity.String()))
	}
	if f.Category != "" {
		where = append(where, "lower(category) = lower("+arg(f.Category)+")")
	}
	if !f.Detected.From.IsZero() {
		where = append(where, "detected_at >= "+arg(f.Detected.From))
	}
	if !f.Detected.To.IsZero() {
		where = append(where, "detected_at <= "+arg(f.Detected.To))
	}
	if f.Unsettled || f.OnlyOverdue {
		where = append(where, "status NOT IN ('resolved', 'closed')")
	}
	if f.OnlyOverdue {
		where = append(where, "due_date < "+arg(time.Now()))
	}

	order, ok := alertOrder[f.Sort]
	if !ok {
		order = alertOrder[domain.SortByDetectedAt]
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	q := `SELECT ` + alertColumns + ` FROM compliance_alerts WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY ` + order + ` ` + dir + `, id ` + dir
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}

	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectAlerts(rows)
}

// ListAlertViews loads the suppliers of a page in one query.
func (db *DB) ListAlertViews(ctx context.Context, f domain.AlertFilter, withSupplier bool) ([]domain.AlertView, error) {
	alerts, err := db.ListAlerts(ctx, f)
	if err != nil {
		return nil, err
	}
	if !withSupplier || len(alerts) == 0 {
		return domain.JoinSuppliers(alerts, nil), nil
	}
	ids := make([]string, 0, len(alerts))
	seen := map[string]bool{}
	for _, a := range alerts {
		if !seen[a.SupplierID] {
			seen[a.SupplierID] = true
			ids = append(ids, a.SupplierID)
		}
	}
	rows, err := db.Pool.Query(ctx, `SELECT id, name, risk_tier FROM suppliers WHERE id = ANY($1) AND NOT deleted`, ids)
	if err != nil {
		return nil, err
	}
	refs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.SupplierRef, error) {
		var (
			ref  domain.SupplierRef
			tier string
		)
		if err := r.Scan(&ref.ID, &ref.Name, &tier); err != nil {
			return ref, err
		}
		t, err := domain.ParseRiskTier(tier)
		ref.RiskTier = t
		return ref, err
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.SupplierRef, len(refs))
	for _, r := range refs {
		byID[r.ID] = r
	}
	return domain.JoinSuppliers(alerts, func(id string) (domain.SupplierRef, bool) {
		r, ok := byID[id]
		return r, ok
	}), nil
}

// AdmitAlert relies on the partial unique index over open alerts: a losing
// insert reads back the open alert that won.
func (db *DB) AdmitAlert(ctx context.Context, a domain.ComplianceAlert) (domain.ComplianceAlert, bool, error) {
	for attempt := 0; attempt < 3; attempt++ {
		stored, err := scanAlert(db.Pool.QueryRow(ctx, `
			INSERT INTO compliance_alerts (`+alertColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, 1, $21, $22, FALSE)
			ON CONFLICT (supplier_id, category) WHERE status = 'open' AND NOT deleted DO NOTHING
			RETURNING `+alertColumns,
			a.ID, a.SupplierID, a.RuleName, a.Title, a.Description, a.Severity.String(), a.Category, string(a.Status),
			a.DetectedAt, a.DueDate, a.ThresholdValue, a.ActualValue,
			a.ResolvedAt, a.ResolvedBy, a.ResolutionNotes,
			a.EscalatedAt, a.EscalatedTo, a.EscalationReason,
			a.RequiresFollowUp, a.FollowUpDate, a.CreatedAt, a.UpdatedAt))
		if err == nil {
			return stored, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			if isUniqueViolation(err) {
				return domain.ComplianceAlert{}, false, fmt.Errorf("alert %s already exists: %w", a.ID, domain.ErrConflict)
			}
			return domain.ComplianceAlert{}, false, err
		}

		existing, err := scanAlert(db.Pool.QueryRow(ctx, `
			SELECT `+alertColumns+` FROM compliance_alerts
			WHERE supplier_id = $1 AND category = $2 AND status = 'open' AND NOT deleted`,
			a.SupplierID, a.Category))
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.ComplianceAlert{}, false, err
		}
		// the open alert moved on between the two statements; try again
	}
	return domain.ComplianceAlert{}, false, fmt.Errorf("admit alert for supplier %s: %w", a.SupplierID, domain.ErrConflict)
}

// UpdateAlert writes a only when the stored version still equals
// expectedVersion.
func (db *DB) UpdateAlert(ctx context.Context, a domain.ComplianceAlert, expectedVersion int64) (domain.ComplianceAlert, error) {
	saved, err := scanAlert(db.Pool.QueryRow(ctx, `
		UPDATE compliance_alerts SET
			rule_name = $3, title = $4, description = $5, severity = $6, category = $7, status = $8,
			detected_at = $9, due_date = $10, threshold_value = $11, actual_value = $12,
			resolved_at = $13, resolved_by = $14, resolution_notes = $15,
			escalated_at = $16, escalated_to = $17, escalation_reason = $18,
			requires_follow_up = $19, follow_up_date = $20, updated_at = $21,
			version = version + 1
		WHERE id = $1 AND version = $2 AND NOT deleted
		RETURNING `+alertColumns,
		a.ID, expectedVersion, a.RuleName, a.Title, a.Description, a.Severity.String(), a.Category, string(a.Status),
		a.DetectedAt, a.DueDate, a.ThresholdValue, a.ActualValue,
		a.ResolvedAt, a.ResolvedBy, a.ResolutionNotes,
		a.EscalatedAt, a.EscalatedTo, a.EscalationReason,
		a.RequiresFollowUp, a.FollowUpDate, a.UpdatedAt))
	switch {
	case err == nil:
		return saved, nil
	case isUniqueViolation(err):
		return domain.ComplianceAlert{}, fmt.Errorf("alert %s: another open alert exists for supplier %s category %s: %w",
			a.ID, a.SupplierID, a.Category, domain.ErrConflict)
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.ComplianceAlert{}, err
	}

	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM compliance_alerts WHERE id = $1 AND NOT deleted)`, a.ID).Scan(&exists); err != nil {
		return domain.ComplianceAlert{}, err
	}
	if !exists {
		return domain.ComplianceAlert{}, fmt.Errorf("alert %s: %w", a.ID, domain.ErrNotFound)
	}
	return domain.ComplianceAlert{}, domain.ErrStaleVersion
}
