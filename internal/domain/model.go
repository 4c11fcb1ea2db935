package domain

import "time"

// Core domain models used internally. HTTP and storage shapes live in their
// adapters and convert explicitly; keep these decoupled.

// Record carries identity and bookkeeping shared by stored entities. Services
// call Touch before persisting; nothing stamps timestamps implicitly.
type Record struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Deleted   bool
}

// Touch stamps CreatedAt on first save and UpdatedAt on every save.
func (r *Record) Touch(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

// SupplierSnapshot is the read-only view of a supplier's ESG data that the
// classifier and the compliance monitor consume.
type SupplierSnapshot struct {
	SupplierID    string
	Environmental float64
	Social        float64
	Governance    float64

	HasRenewableEnergyProgram bool
	HasCarbonNeutralityPlan   bool
	HasFairLaborCertification bool
	HasChildLaborPolicy       bool
	HasSafeWorkingConditions  bool

	Certifications []string
	LastAuditDate  time.Time
	NextAuditDate  time.Time
}

// OverallScore is the mean of the three sub-scores.
func (s SupplierSnapshot) OverallScore() float64 {
	return (s.Environmental + s.Social + s.Governance) / 3
}

// Supplier is the stored supplier record with its last classification.
type Supplier struct {
	Record
	Name     string
	Website  *string
	Domain   *string // registrable domain derived from Website
	Country  string
	Active   bool
	Snapshot SupplierSnapshot

	RiskTier     RiskTier
	ESGRating    string
	ClassifiedAt *time.Time
}

// EmissionSample is one month of pre-aggregated emissions.
type EmissionSample struct {
	PeriodKey      string // YYYY-MM
	TotalEmissions float64
	RecordCount    int
}

// DateRange bounds a query; zero values mean unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
