package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

func ParseSeverity(s string) (Severity, error) {
	for i, name := range severityNames {
		if strings.EqualFold(s, name) {
			return Severity(i), nil
		}
	}
	return SeverityLow, &ValidationError{Field: "severity", Problem: fmt.Sprintf("unknown value %q", s)}
}

// DefaultDueIn is the response window for an alert of this severity when
// neither the caller nor the rule supplies one.
func (s Severity) DefaultDueIn() time.Duration {
	switch s {
	case SeverityCritical:
		return 24 * time.Hour
	case SeverityHigh:
		return 3 * 24 * time.Hour
	case SeverityMedium:
		return 7 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}

type AlertStatus string

const (
	StatusOpen       AlertStatus = "open"
	StatusInProgress AlertStatus = "in_progress"
	StatusResolved   AlertStatus = "resolved"
	StatusEscalated  AlertStatus = "escalated"
	StatusClosed     AlertStatus = "closed"
)

func ParseAlertStatus(s string) (AlertStatus, error) {
	switch st := AlertStatus(strings.ToLower(s)); st {
	case StatusOpen, StatusInProgress, StatusResolved, StatusEscalated, StatusClosed:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Problem: fmt.Sprintf("unknown value %q", s)}
}

// Settled reports whether the status counts as resolved for scanning and
// metrics. Only Closed is fully terminal.
func (s AlertStatus) Settled() bool {
	return s == StatusResolved || s == StatusClosed
}

// AlertDraft is a candidate alert produced by a scan or a manual entry.
type AlertDraft struct {
	SupplierID     string
	RuleName       string
	Title          string
	Description    string
	Severity       Severity
	Category       string
	ThresholdValue *float64
	ActualValue    *float64
	DetectedAt     time.Time
	DueDate        *time.Time
	DueIn          time.Duration // rule default, used when DueDate is nil
}

// IdempotencyKey identifies the single open alert a draft may map to.
func (d AlertDraft) IdempotencyKey() string {
	return d.SupplierID + "|" + d.Category + "|" + string(StatusOpen)
}

// ComplianceAlert is the tracked violation. It is mutated only through the
// transition methods below, each of which returns a new value or an error and
// leaves the receiver untouched.
type ComplianceAlert struct {
	Record
	SupplierID  string
	RuleName    *string
	Title       string
	Description string
	Severity    Severity
	Category    string
	Status      AlertStatus
	DetectedAt  time.Time
	DueDate     time.Time

	ThresholdValue *float64
	ActualValue    *float64

	ResolvedAt      *time.Time
	ResolvedBy      *string
	ResolutionNotes *string

	EscalatedAt      *time.Time
	EscalatedTo      *string
	EscalationReason *string

	RequiresFollowUp bool
	FollowUpDate     *time.Time

	Version int64
}

// NewAlert admits a draft as an Open alert.
func NewAlert(id string, d AlertDraft, now time.Time) (ComplianceAlert, error) {
	if strings.TrimSpace(d.SupplierID) == "" {
		return ComplianceAlert{}, &ValidationError{Field: "supplierId", Problem: "required"}
	}
	if strings.TrimSpace(d.Title) == "" {
		return ComplianceAlert{}, &ValidationError{Field: "title", Problem: "required"}
	}
	detected := d.DetectedAt
	if detected.IsZero() {
		detected = now
	}
	var due time.Time
	switch {
	case d.DueDate != nil:
		due = *d.DueDate
	case d.DueIn > 0:
		due = detected.Add(d.DueIn)
	default:
		due = detected.Add(d.Severity.DefaultDueIn())
	}
	a := ComplianceAlert{
		Record:         Record{ID: id},
		SupplierID:     d.SupplierID,
		Title:          d.Title,
		Description:    d.Description,
		Severity:       d.Severity,
		Category:       d.Category,
		Status:         StatusOpen,
		DetectedAt:     detected,
		DueDate:        due,
		ThresholdValue: d.ThresholdValue,
		ActualValue:    d.ActualValue,
	}
	if d.RuleName != "" {
		name := d.RuleName
		a.RuleName = &name
	}
	return a, nil
}

// IsOverdue is derived, never stored.
func (a ComplianceAlert) IsOverdue(now time.Time) bool {
	return now.After(a.DueDate) && !a.Status.Settled()
}

// DaysOverdue is the number of whole days past due, or 0.
func (a ComplianceAlert) DaysOverdue(now time.Time) int {
	if !a.IsOverdue(now) {
		return 0
	}
	return int(math.Floor(now.Sub(a.DueDate).Hours() / 24))
}

// ResolutionHours is resolvedAt - detectedAt, reported only when resolved.
func (a ComplianceAlert) ResolutionHours() (float64, bool) {
	if a.ResolvedAt == nil {
		return 0, false
	}
	return a.ResolvedAt.Sub(a.DetectedAt).Hours(), true
}

// Start moves an open alert into work.
func (a ComplianceAlert) Start(now time.Time) (ComplianceAlert, error) {
	if a.Status != StatusOpen {
		return a, &TransitionError{Action: "start", From: a.Status}
	}
	a.Status = StatusInProgress
	return a, nil
}

// Resolve is legal from Open, InProgress and Escalated.
func (a ComplianceAlert) Resolve(by, notes string, now time.Time) (ComplianceAlert, error) {
	if a.Status.Settled() {
		return a, &TransitionError{Action: "resolve", From: a.Status}
	}
	a.Status = StatusResolved
	a.ResolvedAt = &now
	a.ResolvedBy = &by
	a.ResolutionNotes = &notes
	a.EscalatedAt = nil
	return a, nil
}

// Escalate is legal from any unsettled status, including Escalated itself.
func (a ComplianceAlert) Escalate(to, reason string, now time.Time) (ComplianceAlert, error) {
	if a.Status.Settled() {
		return a, &TransitionError{Action: "escalate", From: a.Status}
	}
	a.Status = StatusEscalated
	a.EscalatedAt = &now
	a.EscalatedTo = &to
	a.EscalationReason = &reason
	return a, nil
}

// Close retires a resolved alert. Closed accepts no further transitions.
func (a ComplianceAlert) Close(now time.Time) (ComplianceAlert, error) {
	if a.Status != StatusResolved {
		return a, &TransitionError{Action: "close", From: a.Status}
	}
	a.Status = StatusClosed
	return a, nil
}

// AlertPatch changes non-identity, non-status fields. Nil fields are left as is.
type AlertPatch struct {
	Title            *string
	Description      *string
	Severity         *Severity
	Category         *string
	DueDate          *time.Time
	ThresholdValue   *float64
	ActualValue      *float64
	RequiresFollowUp *bool
	FollowUpDate     *time.Time
}

// Apply returns the patched alert. Closed alerts are immutable.
func (a ComplianceAlert) Apply(p AlertPatch) (ComplianceAlert, error) {
	if a.Status == StatusClosed {
		return a, &TransitionError{Action: "update", From: a.Status}
	}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return a, &ValidationError{Field: "title", Problem: "must not be empty"}
		}
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Severity != nil {
		a.Severity = *p.Severity
	}
	if p.Category != nil {
		a.Category = *p.Category
	}
	if p.DueDate != nil {
		a.DueDate = *p.DueDate
	}
	if p.ThresholdValue != nil {
		a.ThresholdValue = p.ThresholdValue
	}
	if p.ActualValue != nil {
		a.ActualValue = p.ActualValue
	}
	if p.RequiresFollowUp != nil {
		a.RequiresFollowUp = *p.RequiresFollowUp
		if !a.RequiresFollowUp {
			a.FollowUpDate = nil
		}
	}
	if p.FollowUpDate != nil {
		a.FollowUpDate = p.FollowUpDate
		a.RequiresFollowUp = true
	}
	return a, nil
}

// CheckInvariants verifies the status-linked timestamps.
func (a ComplianceAlert) CheckInvariants() error {
	if (a.ResolvedAt != nil) != a.Status.Settled() {
		return fmt.Errorf("alert %s: resolvedAt inconsistent with status %s", a.ID, a.Status)
	}
	if (a.EscalatedAt != nil) != (a.Status == StatusEscalated) {
		return fmt.Errorf("alert %s: escalatedAt inconsistent with status %s", a.ID, a.Status)
	}
	return nil
}
