package domain

import (
	"fmt"
	"strings"
	"time"
)

// RiskTier is ordered: a larger value means more exposure.
type RiskTier int

const (
	RiskLow RiskTier = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskTierNames = [...]string{"low", "medium", "high", "critical"}

func (t RiskTier) String() string {
	if t < RiskLow || t > RiskCritical {
		return fmt.Sprintf("RiskTier(%d)", int(t))
	}
	return riskTierNames[t]
}

// ParseRiskTier accepts the names produced by String, case-insensitively.
func ParseRiskTier(s string) (RiskTier, error) {
	for i, name := range riskTierNames {
		if strings.EqualFold(s, name) {
			return RiskTier(i), nil
		}
	}
	return RiskLow, &ValidationError{Field: "riskTier", Problem: fmt.Sprintf("unknown value %q", s)}
}

// Classification is the classifier's output for one snapshot.
type Classification struct {
	Tier        RiskTier
	Rating      string
	FactorScore int
}

// RiskFactorScore accumulates the integer risk factors for a snapshot.
func RiskFactorScore(s SupplierSnapshot, now time.Time) int {
	score := 0
	overall := s.OverallScore()
	switch {
	case overall < 40:
		score += 3
	case overall < 60:
		score += 2
	case overall < 80:
		score++
	}
	if len(s.Certifications) == 0 {
		score++
	}
	if !s.HasFairLaborCertification {
		score++
	}
	if !s.HasChildLaborPolicy {
		score += 2
	}
	if !s.HasSafeWorkingConditions {
		score += 2
	}
	if !s.HasRenewableEnergyProgram {
		score++
	}
	if !s.HasCarbonNeutralityPlan {
		score++
	}
	if s.NextAuditDate.Before(now) {
		score += 2
	}
	return score
}

// TierForScore buckets a factor score.
func TierForScore(score int) RiskTier {
	switch {
	case score <= 2:
		return RiskLow
	case score <= 5:
		return RiskMedium
	case score <= 8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Rating maps an overall score to the ESG letter grade.
func Rating(overall float64) string {
	switch {
	case overall >= 90:
		return "A+"
	case overall >= 80:
		return "A"
	case overall >= 70:
		return "B+"
	case overall >= 60:
		return "B"
	case overall >= 50:
		return "C+"
	case overall >= 40:
		return "C"
	case overall >= 30:
		return "D"
	default:
		return "F"
	}
}

// Classify is pure and total: any snapshot yields a tier and a rating.
func Classify(s SupplierSnapshot, now time.Time) Classification {
	score := RiskFactorScore(s, now)
	return Classification{
		Tier:        TierForScore(score),
		Rating:      Rating(s.OverallScore()),
		FactorScore: score,
	}
}

// ValidationCriteria is the breakdown behind Validate.
type ValidationCriteria struct {
	EnvironmentalOK    bool
	SocialOK           bool
	GovernanceOK       bool
	ChildLaborPolicy   bool
	SafeWorkingConds   bool
	AuditScheduled     bool
	AcceptableRiskTier bool
	Passed             int
	Required           int
	Acceptable         bool
}

const validationRequired = 5

// Evaluate checks the seven acceptance criteria; a supplier is acceptable when
// at least five hold.
func Evaluate(s SupplierSnapshot, now time.Time) ValidationCriteria {
	c := ValidationCriteria{
		EnvironmentalOK:    s.Environmental >= 50,
		SocialOK:           s.Social >= 50,
		GovernanceOK:       s.Governance >= 50,
		ChildLaborPolicy:   s.HasChildLaborPolicy,
		SafeWorkingConds:   s.HasSafeWorkingConditions,
		AuditScheduled:     s.NextAuditDate.After(now),
		AcceptableRiskTier: Classify(s, now).Tier <= RiskMedium,
		Required:           validationRequired,
	}
	for _, ok := range []bool{
		c.EnvironmentalOK, c.SocialOK, c.GovernanceOK,
		c.ChildLaborPolicy, c.SafeWorkingConds, c.AuditScheduled, c.AcceptableRiskTier,
	} {
		if ok {
			c.Passed++
		}
	}
	c.Acceptable = c.Passed >= c.Required
	return c
}

// Validate reports whether the supplier is acceptable.
func Validate(s SupplierSnapshot, now time.Time) bool {
	return Evaluate(s, now).Acceptable
}
