package suppliers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"esgwatch/internal/domain"
	"esgwatch/internal/metrics"
	"esgwatch/internal/ports"
)

// Service classifies suppliers and keeps their stored tier and rating current.
type Service struct {
	repo ports.SupplierRepository
	now  func() time.Time
}

func New(repo ports.SupplierRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Classify is the stateless classifier entry point.
func (s *Service) Classify(snap domain.SupplierSnapshot) domain.Classification {
	c := domain.Classify(snap, s.now())
	metrics.RecordClassification(c.Tier.String())
	return c
}

// Validate reports the acceptance criteria for a snapshot.
func (s *Service) Validate(snap domain.SupplierSnapshot) domain.ValidationCriteria {
	return domain.Evaluate(snap, s.now())
}

// Input is the caller-supplied part of a supplier record.
type Input struct {
	ID       string
	Name     string
	Website  *string
	Country  string
	Active   bool
	Snapshot domain.SupplierSnapshot
}

// Upsert stores a supplier after classifying it. A new id is assigned when
// Input.ID is empty.
func (s *Service) Upsert(ctx context.Context, in Input) (domain.Supplier, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Supplier{}, &domain.ValidationError{Field: "name", Problem: "required"}
	}
	if err := checkScores(in.Snapshot); err != nil {
		return domain.Supplier{}, err
	}

	sup := domain.Supplier{Record: domain.Record{ID: in.ID}}
	if in.ID != "" {
		existing, err := s.repo.GetSupplier(ctx, in.ID)
		switch {
		case err == nil:
			sup = existing
		case !errors.Is(err, domain.ErrNotFound):
			return domain.Supplier{}, err
		}
	} else {
		sup.ID = uuid.NewString()
	}

	sup.Name = strings.TrimSpace(in.Name)
	sup.Country = in.Country
	sup.Active = in.Active
	sup.Website = in.Website
	sup.Domain = nil
	if in.Website != nil && *in.Website != "" {
		d, err := registrableDomain(*in.Website)
		if err != nil {
			return domain.Supplier{}, &domain.ValidationError{Field: "website", Problem: err.Error()}
		}
		sup.Domain = &d
	}
	sup.Snapshot = in.Snapshot
	sup.Snapshot.SupplierID = sup.ID

	s.applyClassification(&sup)
	sup.Touch(s.now())
	if err := s.repo.SaveSupplier(ctx, sup); err != nil {
		return domain.Supplier{}, fmt.Errorf("save supplier %s: %w", sup.ID, err)
	}
	return sup, nil
}

// Get returns a stored supplier.
func (s *Service) Get(ctx context.Context, id string) (domain.Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// Reclassify re-runs the classifier on the stored snapshot and replaces the
// stored tier and rating wholesale.
func (s *Service) Reclassify(ctx context.Context, id string) (domain.Supplier, error) {
	sup, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.applyClassification(&sup)
	sup.Touch(s.now())
	if err := s.repo.SaveSupplier(ctx, sup); err != nil {
		return domain.Supplier{}, fmt.Errorf("save supplier %s: %w", sup.ID, err)
	}
	return sup, nil
}

func (s *Service) applyClassification(sup *domain.Supplier) {
	now := s.now()
	c := domain.Classify(sup.Snapshot, now)
	metrics.RecordClassification(c.Tier.String())
	sup.RiskTier = c.Tier
	sup.ESGRating = c.Rating
	sup.ClassifiedAt = &now
}

func checkScores(snap domain.SupplierSnapshot) error {
	for name, v := range map[string]float64{
		"environmental": snap.Environmental,
		"social":        snap.Social,
		"governance":    snap.Governance,
	} {
		if v < 0 || v > 100 {
			return &domain.ValidationError{Field: name, Problem: "must be between 0 and 100"}
		}
	}
	return nil
}

// registrableDomain reduces a website to its eTLD+1 so suppliers sharing a
// domain can be matched.
func registrableDomain(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return registrable, nil
}
