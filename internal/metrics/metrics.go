package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	// scansTotal counts compliance scans by outcome: completed, partial, failed
	scansTotal *prometheus.CounterVec

	scanDuration prometheus.Histogram

	// ruleErrorsTotal counts rules skipped during scans
	ruleErrorsTotal prometheus.Counter

	// alertsAdmittedTotal counts drafts by admission result: created, existing
	alertsAdmittedTotal *prometheus.CounterVec

	// alertTransitionsTotal counts lifecycle calls by action and result
	alertTransitionsTotal *prometheus.CounterVec

	// escalationNotificationsTotal counts webhook deliveries by result
	escalationNotificationsTotal *prometheus.CounterVec

	classificationsTotal *prometheus.CounterVec
)

// InitMetrics registers all instruments. Safe to call more than once; the
// Record functions are no-ops until it has run.
func InitMetrics() {
	metricsOnce.Do(func() {
		scansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_compliance_scans_total",
				Help: "Total compliance scans by outcome",
			},
			[]string{"outcome"},
		)

		scanDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "esg_compliance_scan_duration_seconds",
				Help:    "Duration of compliance scans in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		)

		ruleErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "esg_compliance_rule_errors_total",
				Help: "Total rule evaluation errors reported by scans",
			},
		)

		alertsAdmittedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_alerts_admitted_total",
				Help: "Alert drafts admitted, by result (created or existing open alert)",
			},
			[]string{"result", "severity"},
		)

		alertTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_alert_transitions_total",
				Help: "Alert lifecycle operations by action and result",
			},
			[]string{"action", "result"},
		)

		escalationNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_escalation_notifications_total",
				Help: "Escalation webhook deliveries by result",
			},
			[]string{"result"},
		)

		classificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_supplier_classifications_total",
				Help: "Supplier classifications by resulting risk tier",
			},
			[]string{"tier"},
		)
	})
}

// RecordScan records a finished scan.
// outcome: "completed", "partial", "failed"
func RecordScan(outcome string, duration time.Duration, ruleErrors int) {
	if scansTotal != nil {
		scansTotal.WithLabelValues(outcome).Inc()
	}
	if scanDuration != nil {
		scanDuration.Observe(duration.Seconds())
	}
	if ruleErrorsTotal != nil && ruleErrors > 0 {
		ruleErrorsTotal.Add(float64(ruleErrors))
	}
}

// RecordAdmission records one draft admission.
// result: "created", "existing"
func RecordAdmission(result, severity string) {
	if alertsAdmittedTotal != nil {
		alertsAdmittedTotal.WithLabelValues(result, severity).Inc()
	}
}

// RecordTransition records a lifecycle call.
// result: "ok", "conflict", "not_found", "error"
func RecordTransition(action, result string) {
	if alertTransitionsTotal != nil {
		alertTransitionsTotal.WithLabelValues(action, result).Inc()
	}
}

func RecordEscalationNotification(result string) {
	if escalationNotificationsTotal != nil {
		escalationNotificationsTotal.WithLabelValues(result).Inc()
	}
}

func RecordClassification(tier string) {
	if classificationsTotal != nil {
		classificationsTotal.WithLabelValues(tier).Inc()
	}
}
