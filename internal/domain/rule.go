package domain

// MonitoringRule is configuration: a threshold check evaluated against every
// supplier snapshot. Operator and MetricSelector are validated at scan time so
// one bad rule never blocks the others.
type MonitoringRule struct {
	Record
	Name           string
	Category       string
	MetricSelector string
	Operator       string
	ThresholdValue float64
	Severity       Severity
	DueInDays      int
	// Disabled rules are skipped by scans. The zero value is an active rule.
	Disabled bool
}

// RuleError reports a rule that could not be evaluated.
type RuleError struct {
	Rule   string
	Reason string
}

func (e RuleError) Error() string {
	return "rule " + e.Rule + ": " + e.Reason
}
