package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"esgwatch/internal/domain"
	"esgwatch/internal/metrics"
	"esgwatch/internal/ports"
)

// Event subjects published on every successful lifecycle call.
const (
	SubjectCreated   = "esg.alerts.created"
	SubjectUpdated   = "esg.alerts.updated"
	SubjectStarted   = "esg.alerts.started"
	SubjectResolved  = "esg.alerts.resolved"
	SubjectEscalated = "esg.alerts.escalated"
	SubjectClosed    = "esg.alerts.closed"
)

// Event is the payload published for lifecycle changes.
type Event struct {
	AlertID    string    `json:"alertId"`
	SupplierID string    `json:"supplierId"`
	Category   string    `json:"category"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	Version    int64     `json:"version"`
	At         time.Time `json:"at"`
}

// RetryPolicy bounds retries of stale compare-and-swap writes.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, InitialInterval: 10 * time.Millisecond, MaxInterval: 200 * time.Millisecond}
}

// Service owns the alert lifecycle.
type Service struct {
	repo     ports.AlertRepository
	events   ports.EventPublisher
	notifier ports.EscalationNotifier
	logger   *slog.Logger
	retry    RetryPolicy
	now      func() time.Time
	newID    func() string

	notifying sync.WaitGroup
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithNotifier(n ports.EscalationNotifier) Option { return func(s *Service) { s.notifier = n } }

func WithRetryPolicy(p RetryPolicy) Option { return func(s *Service) { s.retry = p } }

func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.newID = fn } }

func New(repo ports.AlertRepository, events ports.EventPublisher, logger *slog.Logger, opts ...Option) *Service {
	if events == nil {
		events = ports.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		events: events,
		logger: logger,
		retry:  DefaultRetryPolicy(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Admission is the result of admitting one draft.
type Admission struct {
	Alert   domain.ComplianceAlert
	Created bool
}

// Create admits a single draft. When an open alert already exists for the
// same supplier and category it is returned with Created=false.
func (s *Service) Create(ctx context.Context, d domain.AlertDraft) (Admission, error) {
	now := s.now()
	a, err := domain.NewAlert(s.newID(), d, now)
	if err != nil {
		return Admission{}, err
	}
	a.Touch(now)
	stored, created, err := s.repo.AdmitAlert(ctx, a)
	if err != nil {
		return Admission{}, fmt.Errorf("admit alert for supplier %s: %w", d.SupplierID, err)
	}
	if created {
		metrics.RecordAdmission("created", stored.Severity.String())
		s.publish(SubjectCreated, stored)
	} else {
		metrics.RecordAdmission("existing", stored.Severity.String())
	}
	return Admission{Alert: stored, Created: created}, nil
}

// AdmitAll admits scan drafts one by one. A failing draft is logged and
// counted; it does not stop the remaining drafts.
func (s *Service) AdmitAll(ctx context.Context, drafts []domain.AlertDraft) (created int, existing int, err error) {
	var errs []error
	for _, d := range drafts {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, aerr := s.Create(ctx, d)
		if aerr != nil {
			s.logger.Error("alert admission failed",
				slog.String("supplier_id", d.SupplierID),
				slog.String("category", d.Category),
				slog.String("error", aerr.Error()))
			errs = append(errs, aerr)
			continue
		}
		if res.Created {
			created++
		} else {
			existing++
		}
	}
	return created, existing, errors.Join(errs...)
}

func (s *Service) Get(ctx context.Context, id string) (domain.ComplianceAlert, error) {
	return s.repo.GetAlert(ctx, id)
}

// List returns alerts matching filter, sorted by its sort key, with their
// suppliers loaded when includeSupplier is set.
func (s *Service) List(ctx context.Context, filter domain.AlertFilter, includeSupplier bool) ([]domain.AlertView, error) {
	return s.repo.ListAlertViews(ctx, filter, includeSupplier)
}

func (s *Service) Update(ctx context.Context, id string, p domain.AlertPatch) (domain.ComplianceAlert, error) {
	return s.mutate(ctx, "update", id, SubjectUpdated, func(a domain.ComplianceAlert, _ time.Time) (domain.ComplianceAlert, error) {
		return a.Apply(p)
	})
}

func (s *Service) Start(ctx context.Context, id string) (domain.ComplianceAlert, error) {
	return s.mutate(ctx, "start", id, SubjectStarted, func(a domain.ComplianceAlert, now time.Time) (domain.ComplianceAlert, error) {
		return a.Start(now)
	})
}

func (s *Service) Resolve(ctx context.Context, id, resolvedBy, notes string) (domain.ComplianceAlert, error) {
	return s.mutate(ctx, "resolve", id, SubjectResolved, func(a domain.ComplianceAlert, now time.Time) (domain.ComplianceAlert, error) {
		return a.Resolve(resolvedBy, notes, now)
	})
}

func (s *Service) Escalate(ctx context.Context, id, escalatedTo, reason string) (domain.ComplianceAlert, error) {
	a, err := s.mutate(ctx, "escalate", id, SubjectEscalated, func(a domain.ComplianceAlert, now time.Time) (domain.ComplianceAlert, error) {
		return a.Escalate(escalatedTo, reason, now)
	})
	if err != nil {
		return a, err
	}
	s.notifyEscalation(context.WithoutCancel(ctx), a)
	return a, nil
}

func (s *Service) Close(ctx context.Context, id string) (domain.ComplianceAlert, error) {
	return s.mutate(ctx, "close", id, SubjectClosed, func(a domain.ComplianceAlert, now time.Time) (domain.ComplianceAlert, error) {
		return a.Close(now)
	})
}

type transition func(a domain.ComplianceAlert, now time.Time) (domain.ComplianceAlert, error)

// mutate loads the alert, applies fn and writes the result with a version
// check. Lost races are retried with backoff; a transition that is illegal on
// the freshly loaded state fails immediately.
func (s *Service) mutate(ctx context.Context, action, id, subject string, fn transition) (domain.ComplianceAlert, error) {
	var out domain.ComplianceAlert

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retry.InitialInterval
	exp.MaxInterval = s.retry.MaxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.retry.MaxRetries)), ctx)

	op := func() error {
		current, err := s.repo.GetAlert(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		now := s.now()
		next, err := fn(current, now)
		if err != nil {
			return backoff.Permanent(err)
		}
		next.Touch(now)
		saved, err := s.repo.UpdateAlert(ctx, next, current.Version)
		if errors.Is(err, domain.ErrStaleVersion) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		out = saved
		return nil
	}

	err := backoff.Retry(op, policy)
	if err != nil {
		if errors.Is(err, domain.ErrStaleVersion) {
			err = fmt.Errorf("alert %s changed concurrently: %w", id, domain.ErrConflict)
		}
		metrics.RecordTransition(action, resultLabel(err))
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Info("alert transition rejected",
				slog.String("action", action),
				slog.String("alert_id", id),
				slog.String("reason", err.Error()))
		}
		return domain.ComplianceAlert{}, err
	}
	metrics.RecordTransition(action, "ok")
	s.publish(subject, out)
	return out, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func (s *Service) publish(subject string, a domain.ComplianceAlert) {
	evt := Event{
		AlertID:    a.ID,
		SupplierID: a.SupplierID,
		Category:   a.Category,
		Severity:   a.Severity.String(),
		Status:     string(a.Status),
		Version:    a.Version,
		At:         a.UpdatedAt,
	}
	if err := s.events.Publish(subject, evt); err != nil {
		s.logger.Warn("alert event publish failed",
			slog.String("subject", subject),
			slog.String("alert_id", a.ID),
			slog.String("error", err.Error()))
	}
}

// WaitNotifications blocks until escalation deliveries already started have
// finished.
func (s *Service) WaitNotifications() {
	s.notifying.Wait()
}

// notifyEscalation delivers in the background and never fails the escalation
// itself. ctx must not be tied to the caller's request.
func (s *Service) notifyEscalation(ctx context.Context, a domain.ComplianceAlert) {
	if s.notifier == nil {
		return
	}
	n := ports.Escalation{
		AlertID:    a.ID,
		SupplierID: a.SupplierID,
		Title:      a.Title,
		Severity:   a.Severity.String(),
		Category:   a.Category,
		DueDate:    a.DueDate.UTC().Format(time.RFC3339),
	}
	if a.EscalatedTo != nil {
		n.To = *a.EscalatedTo
	}
	if a.EscalationReason != nil {
		n.Reason = *a.EscalationReason
	}
	s.notifying.Add(1)
	go func() {
		defer s.notifying.Done()
		s.deliverEscalation(ctx, n)
	}()
}

func (s *Service) deliverEscalation(ctx context.Context, n ports.Escalation) {
	if err := s.notifier.NotifyEscalation(ctx, n); err != nil {
		metrics.RecordEscalationNotification("failed")
		s.logger.Error("escalation notification failed",
			slog.String("alert_id", n.AlertID),
			slog.String("error", err.Error()))
		return
	}
	metrics.RecordEscalationNotification("delivered")
}
