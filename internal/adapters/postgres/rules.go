package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"esgwatch/internal/domain"
)

func (db *DB) ListRules(ctx context.Context) ([]domain.MonitoringRule, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, name, category, metric_selector, operator, threshold_value, severity,
		       due_in_days, enabled, created_at, updated_at
		FROM monitoring_rules
		WHERE NOT deleted
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.MonitoringRule, error) {
		var (
			m       domain.MonitoringRule
			sev     string
			enabled bool
		)
		if err := r.Scan(&m.ID, &m.Name, &m.Category, &m.MetricSelector, &m.Operator, &m.ThresholdValue, &sev,
			&m.DueInDays, &enabled, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return m, err
		}
		s, err := domain.ParseSeverity(sev)
		m.Severity = s
		m.Disabled = !enabled
		return m, err
	})
}

// SaveRules upserts rules by name, used to seed the table from a YAML file.
func (db *DB) SaveRules(ctx context.Context, rules []domain.MonitoringRule) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		for _, r := range rules {
			if _, err := tx.Exec(ctx, `
				INSERT INTO monitoring_rules (id, name, category, metric_selector, operator, threshold_value,
				                              severity, due_in_days, enabled, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
				ON CONFLICT (name) DO UPDATE SET
					category = EXCLUDED.category,
					metric_selector = EXCLUDED.metric_selector,
					operator = EXCLUDED.operator,
					threshold_value = EXCLUDED.threshold_value,
					severity = EXCLUDED.severity,
					due_in_days = EXCLUDED.due_in_days,
					enabled = EXCLUDED.enabled,
					updated_at = EXCLUDED.updated_at
			`, r.ID, r.Name, r.Category, r.MetricSelector, r.Operator, r.ThresholdValue,
				r.Severity.String(), r.DueInDays, !r.Disabled, r.UpdatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}
