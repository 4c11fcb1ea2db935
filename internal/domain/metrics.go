package domain

import (
	"math"
	"time"
)

// DashboardMetrics summarises an alert collection.
type DashboardMetrics struct {
	Total              int
	Open               int
	InProgress         int
	Escalated          int
	Resolved           int // Resolved or Closed
	Critical           int
	Overdue            int
	ResolutionRate     float64
	AvgResolutionHours float64
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ResolutionRate is the percentage of settled alerts, 0 for an empty set.
func ResolutionRate(alerts []ComplianceAlert) float64 {
	if len(alerts) == 0 {
		return 0
	}
	settled := 0
	for _, a := range alerts {
		if a.Status.Settled() {
			settled++
		}
	}
	return round2(100 * float64(settled) / float64(len(alerts)))
}

// AverageResolutionHours averages resolvedAt - detectedAt over resolved alerts.
func AverageResolutionHours(alerts []ComplianceAlert) float64 {
	var sum float64
	n := 0
	for _, a := range alerts {
		if h, ok := a.ResolutionHours(); ok {
			sum += h
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

// FilterDetected keeps alerts detected inside the window.
func FilterDetected(alerts []ComplianceAlert, window DateRange) []ComplianceAlert {
	if window.From.IsZero() && window.To.IsZero() {
		return alerts
	}
	out := make([]ComplianceAlert, 0, len(alerts))
	for _, a := range alerts {
		if window.Contains(a.DetectedAt) {
			out = append(out, a)
		}
	}
	return out
}

// ComputeDashboard aggregates alerts detected inside window.
func ComputeDashboard(alerts []ComplianceAlert, window DateRange, now time.Time) DashboardMetrics {
	alerts = FilterDetected(alerts, window)
	m := DashboardMetrics{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Status {
		case StatusOpen:
			m.Open++
		case StatusInProgress:
			m.InProgress++
		case StatusEscalated:
			m.Escalated++
		case StatusResolved, StatusClosed:
			m.Resolved++
		}
		if a.Severity == SeverityCritical {
			m.Critical++
		}
		if a.IsOverdue(now) {
			m.Overdue++
		}
	}
	m.ResolutionRate = ResolutionRate(alerts)
	m.AvgResolutionHours = AverageResolutionHours(alerts)
	return m
}
