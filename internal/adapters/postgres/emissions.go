package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"esgwatch/internal/domain"
)

// MonthlyEmissionTotals groups raw records by UTC calendar month.
func (db *DB) MonthlyEmissionTotals(ctx context.Context, supplierID string, window domain.DateRange) ([]domain.EmissionSample, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT to_char(date_trunc('month', recorded_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS period,
		       SUM(amount), COUNT(*)
		FROM emission_records
		WHERE ($1 = '' OR supplier_id = $1)
		  AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		  AND ($3::timestamptz IS NULL OR recorded_at <= $3)
		GROUP BY period
		ORDER BY period
	`, supplierID, nullTime(window.From), nullTime(window.To))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.EmissionSample, error) {
		var s domain.EmissionSample
		err := r.Scan(&s.PeriodKey, &s.TotalEmissions, &s.RecordCount)
		return s, err
	})
}

func (db *DB) RecordEmission(ctx context.Context, supplierID string, at time.Time, amount float64) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO emission_records (supplier_id, recorded_at, amount) VALUES ($1, $2, $3)`,
		supplierID, at, amount)
	return err
}
