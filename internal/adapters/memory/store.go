package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"esgwatch/internal/domain"
	"esgwatch/internal/ports"
)

type emissionRecord struct {
	supplierID string
	at         time.Time
	amount     float64
}

// Store keeps everything in process. It implements every repository port and
// serialises writes behind one mutex, which also makes alert admission and
// compare-and-swap updates atomic.
type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	suppliers map[string]domain.Supplier
	alerts    map[string]domain.ComplianceAlert
	openIndex map[string]string // idempotency key -> alert id
	emissions []emissionRecord
	rules     []domain.MonitoringRule
	scans     map[string]*ports.ScanRun
	jobs      map[string]string // job id -> scan id
	jobOrder  []string
}

func NewStore() *Store {
	return &Store{
		now:       time.Now,
		suppliers: map[string]domain.Supplier{},
		alerts:    map[string]domain.ComplianceAlert{},
		openIndex: map[string]string{},
		scans:     map[string]*ports.ScanRun{},
		jobs:      map[string]string{},
	}
}

// WithClock replaces the time source used for job timestamps and overdue filters.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Suppliers

func (s *Store) ListActiveSuppliers(ctx context.Context) ([]domain.SupplierSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SupplierSnapshot, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		if sup.Active && !sup.Deleted {
			out = append(out, sup.Snapshot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sup, ok := s.suppliers[id]
	if !ok || sup.Deleted {
		return domain.Supplier{}, fmt.Errorf("supplier %s: %w", id, domain.ErrNotFound)
	}
	return sup, nil
}

func (s *Store) SaveSupplier(ctx context.Context, sup domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[sup.ID] = sup
	return nil
}

// Alerts

func (s *Store) GetAlert(ctx context.Context, id string) (domain.ComplianceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok || a.Deleted {
		return domain.ComplianceAlert{}, fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (s *Store) ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.ComplianceAlert, error) {
	s.mu.RLock()
	now := s.now()
	out := make([]domain.ComplianceAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if f.Match(a, now) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()
	domain.SortAlerts(out, f.Sort, f.Desc)
	return f.Page(out), nil
}

func (s *Store) ListAlertViews(ctx context.Context, f domain.AlertFilter, withSupplier bool) ([]domain.AlertView, error) {
	alerts, err := s.ListAlerts(ctx, f)
	if err != nil {
		return nil, err
	}
	if !withSupplier {
		return domain.JoinSuppliers(alerts, nil), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.JoinSuppliers(alerts, func(id string) (domain.SupplierRef, bool) {
		sup, ok := s.suppliers[id]
		if !ok || sup.Deleted {
			return domain.SupplierRef{}, false
		}
		return domain.SupplierRef{ID: sup.ID, Name: sup.Name, RiskTier: sup.RiskTier}, true
	}), nil
}

func openKey(a domain.ComplianceAlert) string {
	return domain.AlertDraft{SupplierID: a.SupplierID, Category: a.Category}.IdempotencyKey()
}

func (s *Store) AdmitAlert(ctx context.Context, a domain.ComplianceAlert) (domain.ComplianceAlert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := openKey(a)
	if id, ok := s.openIndex[key]; ok {
		if existing, ok := s.alerts[id]; ok && existing.Status == domain.StatusOpen && !existing.Deleted {
			return existing, false, nil
		}
		delete(s.openIndex, key)
	}
	if _, dup := s.alerts[a.ID]; dup {
		return domain.ComplianceAlert{}, false, fmt.Errorf("alert %s already exists: %w", a.ID, domain.ErrConflict)
	}
	a.Version = 1
	s.alerts[a.ID] = a
	s.openIndex[key] = a.ID
	return a, true, nil
}

func (s *Store) UpdateAlert(ctx context.Context, a domain.ComplianceAlert, expectedVersion int64) (domain.ComplianceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.alerts[a.ID]
	if !ok || current.Deleted {
		return domain.ComplianceAlert{}, fmt.Errorf("alert %s: %w", a.ID, domain.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return domain.ComplianceAlert{}, domain.ErrStaleVersion
	}
	if a.Status == domain.StatusOpen && !a.Deleted {
		if id, taken := s.openIndex[openKey(a)]; taken && id != a.ID {
			if other, ok := s.alerts[id]; ok && other.Status == domain.StatusOpen && !other.Deleted {
				return domain.ComplianceAlert{}, fmt.Errorf("alert %s: open alert %s already covers %s/%s: %w",
					a.ID, id, a.SupplierID, a.Category, domain.ErrConflict)
			}
		}
	}
	a.Version = expectedVersion + 1
	s.alerts[a.ID] = a

	key := openKey(current)
	if s.openIndex[key] == a.ID && (a.Status != domain.StatusOpen || openKey(a) != key) {
		delete(s.openIndex, key)
	}
	if a.Status == domain.StatusOpen && !a.Deleted {
		s.openIndex[openKey(a)] = a.ID
	}
	return a, nil
}

// Emissions

// AddEmission records one raw footprint entry.
func (s *Store) AddEmission(supplierID string, at time.Time, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emissions = append(s.emissions, emissionRecord{supplierID: supplierID, at: at, amount: amount})
}

func (s *Store) RecordEmission(ctx context.Context, supplierID string, at time.Time, amount float64) error {
	s.AddEmission(supplierID, at, amount)
	return nil
}

func (s *Store) MonthlyEmissionTotals(ctx context.Context, supplierID string, window domain.DateRange) ([]domain.EmissionSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byMonth := map[string]*domain.EmissionSample{}
	for _, e := range s.emissions {
		if supplierID != "" && e.supplierID != supplierID {
			continue
		}
		if !window.Contains(e.at) {
			continue
		}
		key := e.at.UTC().Format("2006-01")
		sample, ok := byMonth[key]
		if !ok {
			sample = &domain.EmissionSample{PeriodKey: key}
			byMonth[key] = sample
		}
		sample.TotalEmissions += e.amount
		sample.RecordCount++
	}
	out := make([]domain.EmissionSample, 0, len(byMonth))
	for _, sample := range byMonth {
		out = append(out, *sample)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodKey < out[j].PeriodKey })
	return out, nil
}

// Rules

// SetRules replaces the stored rule set.
func (s *Store) SetRules(rules []domain.MonitoringRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append([]domain.MonitoringRule(nil), rules...)
}

func (s *Store) ListRules(ctx context.Context) ([]domain.MonitoringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MonitoringRule(nil), s.rules...), nil
}

// Scan jobs

func (s *Store) EnqueueScan(ctx context.Context, trigger string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scanID := uuid.NewString()
	jobID := uuid.NewString()
	s.scans[scanID] = &ports.ScanRun{ID: scanID, Status: "queued", Trigger: trigger, QueuedAt: s.now()}
	s.jobs[jobID] = scanID
	s.jobOrder = append(s.jobOrder, jobID)
	return scanID, nil
}

func (s *Store) GetScan(ctx context.Context, scanID string) (ports.ScanRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.scans[scanID]
	if !ok {
		return ports.ScanRun{}, fmt.Errorf("scan %s: %w", scanID, domain.ErrNotFound)
	}
	return *run, nil
}

func (s *Store) ClaimNext(ctx context.Context) (ports.ScanJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, jobID := range s.jobOrder {
		scanID := s.jobs[jobID]
		run := s.scans[scanID]
		if run.Status != "queued" {
			continue
		}
		s.markRunning(run)
		return ports.ScanJob{ID: jobID, ScanID: scanID}, true, nil
	}
	return ports.ScanJob{}, false, nil
}

func (s *Store) StartJobForScan(ctx context.Context, scanID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jobID, id := range s.jobs {
		if id != scanID {
			continue
		}
		run := s.scans[scanID]
		if run.Status != "queued" {
			return "", fmt.Errorf("scan %s is %s: %w", scanID, run.Status, domain.ErrConflict)
		}
		s.markRunning(run)
		return jobID, nil
	}
	return "", fmt.Errorf("scan %s: %w", scanID, domain.ErrNotFound)
}

func (s *Store) markRunning(run *ports.ScanRun) {
	now := s.now()
	run.Status = "running"
	run.StartedAt = &now
}

func (s *Store) MarkCompleted(ctx context.Context, jobID string, sum ports.ScanSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.runForJob(jobID)
	if err != nil {
		return err
	}
	now := s.now()
	run.Status = "completed"
	run.FinishedAt = &now
	applySummary(run, sum)
	return nil
}

func applySummary(run *ports.ScanRun, sum ports.ScanSummary) {
	run.Evaluated = sum.Evaluated
	run.Drafts = sum.Drafts
	run.Admitted = sum.Admitted
	run.Partial = sum.Partial
	run.RuleErrors = sum.RuleErrors
	run.Warnings = sum.Warnings
}

func (s *Store) MarkFailed(ctx context.Context, jobID string, reason string, sum ports.ScanSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.runForJob(jobID)
	if err != nil {
		return err
	}
	now := s.now()
	run.Status = "failed"
	run.FinishedAt = &now
	run.FailReason = &reason
	applySummary(run, sum)
	return nil
}

func (s *Store) runForJob(jobID string) (*ports.ScanRun, error) {
	scanID, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return s.scans[scanID], nil
}
