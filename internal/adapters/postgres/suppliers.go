package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"esgwatch/internal/domain"
)

const supplierColumns = `id, name, website, registrable_domain, country, active,
	environmental_score, social_score, governance_score,
	has_renewable_energy_program, has_carbon_neutrality_plan, has_fair_labor_certification,
	has_child_labor_policy, has_safe_working_conditions, certifications,
	last_audit_date, next_audit_date, risk_tier, esg_rating, classified_at,
	created_at, updated_at, deleted`

func scanSupplier(row pgx.Row) (domain.Supplier, error) {
	var (
		s          domain.Supplier
		tier       string
		last, next *time.Time
	)
	err := row.Scan(&s.ID, &s.Name, &s.Website, &s.Domain, &s.Country, &s.Active,
		&s.Snapshot.Environmental, &s.Snapshot.Social, &s.Snapshot.Governance,
		&s.Snapshot.HasRenewableEnergyProgram, &s.Snapshot.HasCarbonNeutralityPlan, &s.Snapshot.HasFairLaborCertification,
		&s.Snapshot.HasChildLaborPolicy, &s.Snapshot.HasSafeWorkingConditions, &s.Snapshot.Certifications,
		&last, &next, &tier, &s.ESGRating, &s.ClassifiedAt,
		&s.CreatedAt, &s.UpdatedAt, &s.Deleted)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.Snapshot.SupplierID = s.ID
	s.Snapshot.LastAuditDate = fromNullTime(last)
	s.Snapshot.NextAuditDate = fromNullTime(next)
	if s.RiskTier, err = domain.ParseRiskTier(tier); err != nil {
		return domain.Supplier{}, err
	}
	return s, nil
}

func (db *DB) ListActiveSuppliers(ctx context.Context) ([]domain.SupplierSnapshot, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE active AND NOT deleted ORDER BY id`)
	if err != nil {
		return nil, err
	}
	sups, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Supplier, error) { return scanSupplier(r) })
	if err != nil {
		return nil, err
	}
	out := make([]domain.SupplierSnapshot, len(sups))
	for i, s := range sups {
		out[i] = s.Snapshot
	}
	return out, nil
}

func (db *DB) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	s, err := scanSupplier(db.Pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 AND NOT deleted`, id))
	if err != nil {
		return domain.Supplier{}, notFound(err, "supplier", id)
	}
	return s, nil
}

func (db *DB) SaveSupplier(ctx context.Context, s domain.Supplier) error {
	certs := s.Snapshot.Certifications
	if certs == nil {
		certs = []string{}
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO suppliers (`+supplierColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			website = EXCLUDED.website,
			registrable_domain = EXCLUDED.registrable_domain,
			country = EXCLUDED.country,
			active = EXCLUDED.active,
			environmental_score = EXCLUDED.environmental_score,
			social_score = EXCLUDED.social_score,
			governance_score = EXCLUDED.governance_score,
			has_renewable_energy_program = EXCLUDED.has_renewable_energy_program,
			has_carbon_neutrality_plan = EXCLUDED.has_carbon_neutrality_plan,
			has_fair_labor_certification = EXCLUDED.has_fair_labor_certification,
			has_child_labor_policy = EXCLUDED.has_child_labor_policy,
			has_safe_working_conditions = EXCLUDED.has_safe_working_conditions,
			certifications = EXCLUDED.certifications,
			last_audit_date = EXCLUDED.last_audit_date,
			next_audit_date = EXCLUDED.next_audit_date,
			risk_tier = EXCLUDED.risk_tier,
			esg_rating = EXCLUDED.esg_rating,
			classified_at = EXCLUDED.classified_at,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`, s.ID, s.Name, s.Website, s.Domain, s.Country, s.Active,
		s.Snapshot.Environmental, s.Snapshot.Social, s.Snapshot.Governance,
		s.Snapshot.HasRenewableEnergyProgram, s.Snapshot.HasCarbonNeutralityPlan, s.Snapshot.HasFairLaborCertification,
		s.Snapshot.HasChildLaborPolicy, s.Snapshot.HasSafeWorkingConditions, certs,
		nullTime(s.Snapshot.LastAuditDate), nullTime(s.Snapshot.NextAuditDate), s.RiskTier.String(), s.ESGRating, s.ClassifiedAt,
		s.CreatedAt, s.UpdatedAt, s.Deleted)
	return err
}
