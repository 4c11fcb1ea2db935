package monitor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"esgwatch/internal/domain"
)

// ruleFile is the YAML shape of a rule set.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Name           string  `yaml:"name"`
	Category       string  `yaml:"category"`
	MetricSelector string  `yaml:"metricSelector"`
	Operator       string  `yaml:"operator"`
	ThresholdValue float64 `yaml:"thresholdValue"`
	Severity       string  `yaml:"severity"`
	DueInDays      int     `yaml:"dueInDays"`
	Enabled        *bool   `yaml:"enabled"`
}

// ParseRules decodes a YAML rule set. Unknown selectors and operators are not
// rejected here; they surface as RuleErrors when a scan runs.
func ParseRules(data []byte) ([]domain.MonitoringRule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	out := make([]domain.MonitoringRule, 0, len(f.Rules))
	for i, e := range f.Rules {
		if strings.TrimSpace(e.Name) == "" {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("rules[%d].name", i), Problem: "required"}
		}
		sev := domain.SeverityMedium
		if e.Severity != "" {
			s, err := domain.ParseSeverity(e.Severity)
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
			sev = s
		}
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		out = append(out, domain.MonitoringRule{
			Name:           e.Name,
			Category:       e.Category,
			MetricSelector: e.MetricSelector,
			Operator:       e.Operator,
			ThresholdValue: e.ThresholdValue,
			Severity:       sev,
			DueInDays:      e.DueInDays,
			Disabled:       !enabled,
		})
	}
	return out, nil
}

// LoadRules reads a YAML rule set from disk.
func LoadRules(path string) ([]domain.MonitoringRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// CheckRule reports why a rule cannot be evaluated, or nil.
func CheckRule(r domain.MonitoringRule) error {
	if _, err := lookupMetric(r.MetricSelector); err != nil {
		return err
	}
	if _, err := lookupOperator(r.Operator); err != nil {
		return err
	}
	return nil
}

// DefaultRules mirrors the conventional rule set: low sub-scores and an
// upcoming audit. The sub-score thresholds were authored on a 0-5 scale and
// are kept as-is; ScaleWarnings flags them.
func DefaultRules() []domain.MonitoringRule {
	return []domain.MonitoringRule{
		{Name: "low-environmental-score", Category: "environmental", MetricSelector: "environmental", Operator: "<", ThresholdValue: 2.5, Severity: domain.SeverityHigh},
		{Name: "low-social-score", Category: "social", MetricSelector: "social", Operator: "<", ThresholdValue: 2.5, Severity: domain.SeverityHigh},
		{Name: "low-governance-score", Category: "governance", MetricSelector: "governance", Operator: "<", ThresholdValue: 2.5, Severity: domain.SeverityMedium},
		{Name: "upcoming-audit", Category: "audit", MetricSelector: "daysUntilNextAudit", Operator: "<=", ThresholdValue: 30, Severity: domain.SeverityMedium, DueInDays: 30},
	}
}

// scaleCeiling is the largest threshold that looks like it was written for a
// 0-5 scale rather than the 0-100 sub-scores.
const scaleCeiling = 5

// ScaleWarnings lists active sub-score rules whose thresholds look like 0-5 scale
// values. Thresholds are never rescaled.
func ScaleWarnings(rules []domain.MonitoringRule) []string {
	var out []string
	for _, r := range rules {
		if r.Disabled || !subScoreMetrics[normalizeSelector(r.MetricSelector)] {
			continue
		}
		if r.ThresholdValue > 0 && r.ThresholdValue <= scaleCeiling {
			out = append(out, fmt.Sprintf("rule %s: threshold %v on %s looks like a 0-5 scale value, sub-scores are 0-100",
				r.Name, r.ThresholdValue, r.MetricSelector))
		}
	}
	return out
}
