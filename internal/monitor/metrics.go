package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"esgwatch/internal/domain"
)

// metricFunc resolves a selector against a snapshot. ok=false means the value
// is not available for this supplier.
type metricFunc func(s domain.SupplierSnapshot, now time.Time) (value float64, ok bool)

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

var metrics = map[string]metricFunc{
	"environmental": func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) { return s.Environmental, true },
	"social":        func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) { return s.Social, true },
	"governance":    func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) { return s.Governance, true },
	"overallscore":  func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) { return s.OverallScore(), true },
	"riskfactorscore": func(s domain.SupplierSnapshot, now time.Time) (float64, bool) {
		return float64(domain.RiskFactorScore(s, now)), true
	},
	"risktier": func(s domain.SupplierSnapshot, now time.Time) (float64, bool) {
		return float64(domain.Classify(s, now).Tier), true
	},
	"certificationcount": func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) {
		return float64(len(s.Certifications)), true
	},
	"daysuntilnextaudit": func(s domain.SupplierSnapshot, now time.Time) (float64, bool) {
		if s.NextAuditDate.IsZero() {
			return 0, false
		}
		return daysBetween(now, s.NextAuditDate), true
	},
	"dayssincelastaudit": func(s domain.SupplierSnapshot, now time.Time) (float64, bool) {
		if s.LastAuditDate.IsZero() {
			return 0, false
		}
		return daysBetween(s.LastAuditDate, now), true
	},
	"hasrenewableenergyprogram": func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) {
		return flag(s.HasRenewableEnergyProgram), true
	},
	"hascarbonneutralityplan": func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) {
		return flag(s.HasCarbonNeutralityPlan), true
	},
	"hasfairlaborcertification": func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) {
		return flag(s.HasFairLaborCertification), true
	},
	"haschildlaborpolicy": func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) {
		return flag(s.HasChildLaborPolicy), true
	},
	"hassafeworkingconditions": func(s domain.SupplierSnapshot, _ time.Time) (float64, bool) {
		return flag(s.HasSafeWorkingConditions), true
	},
}

// subScoreMetrics are the 0-100 scale selectors checked by ScaleWarnings.
var subScoreMetrics = map[string]bool{
	"environmental": true,
	"social":        true,
	"governance":    true,
	"overallscore":  true,
}

func normalizeSelector(sel string) string {
	return strings.ToLower(strings.TrimSpace(sel))
}

func lookupMetric(sel string) (metricFunc, error) {
	fn, ok := metrics[normalizeSelector(sel)]
	if !ok {
		return nil, fmt.Errorf("unknown metric selector %q", sel)
	}
	return fn, nil
}

// Selectors lists the supported metric selector names.
func Selectors() []string {
	out := make([]string, 0, len(metrics))
	for name := range metrics {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
