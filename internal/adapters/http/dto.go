package httpadapter

import (
	"time"

	"esgwatch/internal/domain"
	"esgwatch/internal/monitor"
	"esgwatch/internal/ports"
	"esgwatch/internal/services/dashboard"
)

// Wire shapes. Conversions to and from domain types are explicit.

type snapshotDTO struct {
	SupplierID                string     `json:"supplierId,omitempty"`
	EnvironmentalScore        float64    `json:"environmentalScore"`
	SocialScore               float64    `json:"socialScore"`
	GovernanceScore           float64    `json:"governanceScore"`
	HasRenewableEnergyProgram bool       `json:"hasRenewableEnergyProgram"`
	HasCarbonNeutralityPlan   bool       `json:"hasCarbonNeutralityPlan"`
	HasFairLaborCertification bool       `json:"hasFairLaborCertification"`
	HasChildLaborPolicy       bool       `json:"hasChildLaborPolicy"`
	HasSafeWorkingConditions  bool       `json:"hasSafeWorkingConditions"`
	Certifications            []string   `json:"certifications"`
	LastAuditDate             *time.Time `json:"lastAuditDate,omitempty"`
	NextAuditDate             *time.Time `json:"nextAuditDate,omitempty"`
}

func (d snapshotDTO) toDomain() domain.SupplierSnapshot {
	s := domain.SupplierSnapshot{
		SupplierID:                d.SupplierID,
		Environmental:             d.EnvironmentalScore,
		Social:                    d.SocialScore,
		Governance:                d.GovernanceScore,
		HasRenewableEnergyProgram: d.HasRenewableEnergyProgram,
		HasCarbonNeutralityPlan:   d.HasCarbonNeutralityPlan,
		HasFairLaborCertification: d.HasFairLaborCertification,
		HasChildLaborPolicy:       d.HasChildLaborPolicy,
		HasSafeWorkingConditions:  d.HasSafeWorkingConditions,
		Certifications:            d.Certifications,
	}
	if d.LastAuditDate != nil {
		s.LastAuditDate = *d.LastAuditDate
	}
	if d.NextAuditDate != nil {
		s.NextAuditDate = *d.NextAuditDate
	}
	return s
}

func snapshotFromDomain(s domain.SupplierSnapshot) snapshotDTO {
	d := snapshotDTO{
		SupplierID:                s.SupplierID,
		EnvironmentalScore:        s.Environmental,
		SocialScore:               s.Social,
		GovernanceScore:           s.Governance,
		HasRenewableEnergyProgram: s.HasRenewableEnergyProgram,
		HasCarbonNeutralityPlan:   s.HasCarbonNeutralityPlan,
		HasFairLaborCertification: s.HasFairLaborCertification,
		HasChildLaborPolicy:       s.HasChildLaborPolicy,
		HasSafeWorkingConditions:  s.HasSafeWorkingConditions,
		Certifications:            s.Certifications,
	}
	if d.Certifications == nil {
		d.Certifications = []string{}
	}
	if !s.LastAuditDate.IsZero() {
		t := s.LastAuditDate
		d.LastAuditDate = &t
	}
	if !s.NextAuditDate.IsZero() {
		t := s.NextAuditDate
		d.NextAuditDate = &t
	}
	return d
}

type supplierRequest struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name"`
	Website *string `json:"website,omitempty"`
	Country string  `json:"country"`
	Active  *bool   `json:"active,omitempty"`
	snapshotDTO
}

type supplierResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Website      *string    `json:"website,omitempty"`
	Domain       *string    `json:"domain,omitempty"`
	Country      string     `json:"country"`
	Active       bool       `json:"active"`
	RiskTier     string     `json:"riskTier"`
	ESGRating    string     `json:"esgRating"`
	ClassifiedAt *time.Time `json:"classifiedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	snapshotDTO
}

func supplierFromDomain(s domain.Supplier) supplierResponse {
	return supplierResponse{
		ID:           s.ID,
		Name:         s.Name,
		Website:      s.Website,
		Domain:       s.Domain,
		Country:      s.Country,
		Active:       s.Active,
		RiskTier:     s.RiskTier.String(),
		ESGRating:    s.ESGRating,
		ClassifiedAt: s.ClassifiedAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		snapshotDTO:  snapshotFromDomain(s.Snapshot),
	}
}

type classificationResponse struct {
	RiskTier        string `json:"riskTier"`
	ESGRating       string `json:"esgRating"`
	RiskFactorScore int    `json:"riskFactorScore"`
}

func classificationFromDomain(c domain.Classification) classificationResponse {
	return classificationResponse{RiskTier: c.Tier.String(), ESGRating: c.Rating, RiskFactorScore: c.FactorScore}
}

type validationResponse struct {
	EnvironmentalOK    bool `json:"environmentalOk"`
	SocialOK           bool `json:"socialOk"`
	GovernanceOK       bool `json:"governanceOk"`
	ChildLaborPolicy   bool `json:"childLaborPolicy"`
	SafeWorkingConds   bool `json:"safeWorkingConditions"`
	AuditScheduled     bool `json:"auditScheduled"`
	AcceptableRiskTier bool `json:"acceptableRiskTier"`
	Passed             int  `json:"passed"`
	Required           int  `json:"required"`
	Acceptable         bool `json:"acceptable"`
}

func validationFromDomain(c domain.ValidationCriteria) validationResponse {
	return validationResponse{
		EnvironmentalOK:    c.EnvironmentalOK,
		SocialOK:           c.SocialOK,
		GovernanceOK:       c.GovernanceOK,
		ChildLaborPolicy:   c.ChildLaborPolicy,
		SafeWorkingConds:   c.SafeWorkingConds,
		AuditScheduled:     c.AuditScheduled,
		AcceptableRiskTier: c.AcceptableRiskTier,
		Passed:             c.Passed,
		Required:           c.Required,
		Acceptable:         c.Acceptable,
	}
}

type alertCreateRequest struct {
	SupplierID     string     `json:"supplierId"`
	RuleName       string     `json:"ruleName,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Severity       string     `json:"severity"`
	Category       string     `json:"category"`
	ThresholdValue *float64   `json:"thresholdValue,omitempty"`
	ActualValue    *float64   `json:"actualValue,omitempty"`
	DetectedAt     *time.Time `json:"detectedAt,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
}

func (r alertCreateRequest) toDraft() (domain.AlertDraft, error) {
	sev := domain.SeverityMedium
	if r.Severity != "" {
		s, err := domain.ParseSeverity(r.Severity)
		if err != nil {
			return domain.AlertDraft{}, err
		}
		sev = s
	}
	d := domain.AlertDraft{
		SupplierID:     r.SupplierID,
		RuleName:       r.RuleName,
		Title:          r.Title,
		Description:    r.Description,
		Severity:       sev,
		Category:       r.Category,
		ThresholdValue: r.ThresholdValue,
		ActualValue:    r.ActualValue,
		DueDate:        r.DueDate,
	}
	if r.DetectedAt != nil {
		d.DetectedAt = *r.DetectedAt
	}
	return d, nil
}

type alertPatchRequest struct {
	Title            *string    `json:"title,omitempty"`
	Description      *string    `json:"description,omitempty"`
	Severity         *string    `json:"severity,omitempty"`
	Category         *string    `json:"category,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	ThresholdValue   *float64   `json:"thresholdValue,omitempty"`
	ActualValue      *float64   `json:"actualValue,omitempty"`
	RequiresFollowUp *bool      `json:"requiresFollowUp,omitempty"`
	FollowUpDate     *time.Time `json:"followUpDate,omitempty"`
}

func (r alertPatchRequest) toDomain() (domain.AlertPatch, error) {
	p := domain.AlertPatch{
		Title:            r.Title,
		Description:      r.Description,
		Category:         r.Category,
		DueDate:          r.DueDate,
		ThresholdValue:   r.ThresholdValue,
		ActualValue:      r.ActualValue,
		RequiresFollowUp: r.RequiresFollowUp,
		FollowUpDate:     r.FollowUpDate,
	}
	if r.Severity != nil {
		s, err := domain.ParseSeverity(*r.Severity)
		if err != nil {
			return domain.AlertPatch{}, err
		}
		p.Severity = &s
	}
	return p, nil
}

type resolveRequest struct {
	ResolvedBy string `json:"resolvedBy"`
	Notes      string `json:"notes"`
}

type escalateRequest struct {
	EscalatedTo string `json:"escalatedTo"`
	Reason      string `json:"reason"`
}

type supplierRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RiskTier string `json:"riskTier"`
}

func supplierRefFromDomain(r *domain.SupplierRef) *supplierRef {
	if r == nil {
		return nil
	}
	return &supplierRef{ID: r.ID, Name: r.Name, RiskTier: r.RiskTier.String()}
}

type alertResponse struct {
	ID               string       `json:"id"`
	SupplierID       string       `json:"supplierId"`
	Supplier         *supplierRef `json:"supplier,omitempty"`
	RuleName         *string      `json:"ruleName,omitempty"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Severity         string       `json:"severity"`
	Category         string       `json:"category"`
	Status           string       `json:"status"`
	DetectedAt       time.Time    `json:"detectedAt"`
	DueDate          time.Time    `json:"dueDate"`
	ThresholdValue   *float64     `json:"thresholdValue,omitempty"`
	ActualValue      *float64     `json:"actualValue,omitempty"`
	ResolvedAt       *time.Time   `json:"resolvedAt,omitempty"`
	ResolvedBy       *string      `json:"resolvedBy,omitempty"`
	ResolutionNotes  *string      `json:"resolutionNotes,omitempty"`
	EscalatedAt      *time.Time   `json:"escalatedAt,omitempty"`
	EscalatedTo      *string      `json:"escalatedTo,omitempty"`
	EscalationReason *string      `json:"escalationReason,omitempty"`
	RequiresFollowUp bool         `json:"requiresFollowUp"`
	FollowUpDate     *time.Time   `json:"followUpDate,omitempty"`
	IsOverdue        bool         `json:"isOverdue"`
	DaysOverdue      int          `json:"daysOverdue"`
	ResolutionHours  *float64     `json:"resolutionHours,omitempty"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func alertFromDomain(a domain.ComplianceAlert, now time.Time) alertResponse {
	r := alertResponse{
		ID:               a.ID,
		SupplierID:       a.SupplierID,
		RuleName:         a.RuleName,
		Title:            a.Title,
		Description:      a.Description,
		Severity:         a.Severity.String(),
		Category:         a.Category,
		Status:           string(a.Status),
		DetectedAt:       a.DetectedAt,
		DueDate:          a.DueDate,
		ThresholdValue:   a.ThresholdValue,
		ActualValue:      a.ActualValue,
		ResolvedAt:       a.ResolvedAt,
		ResolvedBy:       a.ResolvedBy,
		ResolutionNotes:  a.ResolutionNotes,
		EscalatedAt:      a.EscalatedAt,
		EscalatedTo:      a.EscalatedTo,
		EscalationReason: a.EscalationReason,
		RequiresFollowUp: a.RequiresFollowUp,
		FollowUpDate:     a.FollowUpDate,
		IsOverdue:        a.IsOverdue(now),
		DaysOverdue:      a.DaysOverdue(now),
		Version:          a.Version,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if h, ok := a.ResolutionHours(); ok {
		r.ResolutionHours = &h
	}
	return r
}

type ruleErrorDTO struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

func ruleErrorsFromDomain(errs []domain.RuleError) []ruleErrorDTO {
	out := make([]ruleErrorDTO, len(errs))
	for i, e := range errs {
		out[i] = ruleErrorDTO{Rule: e.Rule, Reason: e.Reason}
	}
	return out
}

type scanResponse struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Trigger    string         `json:"trigger"`
	QueuedAt   time.Time      `json:"queuedAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Evaluated  int            `json:"evaluated"`
	Drafts     int            `json:"drafts"`
	Admitted   int            `json:"admitted"`
	Partial    bool           `json:"partial"`
	RuleErrors []ruleErrorDTO `json:"ruleErrors"`
	Warnings   []string       `json:"warnings"`
	FailReason *string        `json:"failReason,omitempty"`
}

func scanFromRun(r ports.ScanRun) scanResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return scanResponse{
		ID:         r.ID,
		Status:     r.Status,
		Trigger:    r.Trigger,
		QueuedAt:   r.QueuedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Evaluated:  r.Evaluated,
		Drafts:     r.Drafts,
		Admitted:   r.Admitted,
		Partial:    r.Partial,
		RuleErrors: ruleErrorsFromDomain(r.RuleErrors),
		Warnings:   warnings,
		FailReason: r.FailReason,
	}
}

type ruleDTO struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	MetricSelector string  `json:"metricSelector"`
	Operator       string  `json:"operator"`
	ThresholdValue float64 `json:"thresholdValue"`
	Severity       string  `json:"severity"`
	DueInDays      int     `json:"dueInDays"`
	Enabled        *bool   `json:"enabled,omitempty"`
}

func (r ruleDTO) toDomain() (domain.MonitoringRule, error) {
	sev := domain.SeverityMedium
	if r.Severity != "" {
		s, err := domain.ParseSeverity(r.Severity)
		if err != nil {
			return domain.MonitoringRule{}, err
		}
		sev = s
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return domain.MonitoringRule{
		Name:           r.Name,
		Category:       r.Category,
		MetricSelector: r.MetricSelector,
		Operator:       r.Operator,
		ThresholdValue: r.ThresholdValue,
		Severity:       sev,
		DueInDays:      r.DueInDays,
		Disabled:       !enabled,
	}, nil
}

type previewRequest struct {
	Suppliers []snapshotDTO `json:"suppliers"`
	Rules     []ruleDTO     `json:"rules,omitempty"`
}

type draftDTO struct {
	SupplierID     string   `json:"supplierId"`
	RuleName       string   `json:"ruleName"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Severity       string   `json:"severity"`
	Category       string   `json:"category"`
	ThresholdValue *float64 `json:"thresholdValue,omitempty"`
	ActualValue    *float64 `json:"actualValue,omitempty"`
}

type previewResponse struct {
	Evaluated  int            `json:"evaluated"`
	Partial    bool           `json:"partial"`
	Drafts     []draftDTO     `json:"drafts"`
	RuleErrors []ruleErrorDTO `json:"ruleErrors"`
	Warnings   []string       `json:"warnings"`
}

func previewFromResult(res monitor.Result) previewResponse {
	out := previewResponse{
		Evaluated:  res.Evaluated,
		Partial:    res.Partial,
		Drafts:     make([]draftDTO, len(res.Drafts)),
		RuleErrors: ruleErrorsFromDomain(res.Errors),
		Warnings:   res.Warnings,
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	for i, d := range res.Drafts {
		out.Drafts[i] = draftDTO{
			SupplierID:     d.SupplierID,
			RuleName:       d.RuleName,
			Title:          d.Title,
			Description:    d.Description,
			Severity:       d.Severity.String(),
			Category:       d.Category,
			ThresholdValue: d.ThresholdValue,
			ActualValue:    d.ActualValue,
		}
	}
	return out
}

type dashboardResponse struct {
	TotalAlerts        int     `json:"totalAlerts"`
	OpenAlerts         int     `json:"openAlerts"`
	InProgressAlerts   int     `json:"inProgressAlerts"`
	EscalatedAlerts    int     `json:"escalatedAlerts"`
	ResolvedAlerts     int     `json:"resolvedAlerts"`
	CriticalAlerts     int     `json:"criticalAlerts"`
	OverdueAlerts      int     `json:"overdueAlerts"`
	ResolutionRate     float64 `json:"resolutionRate"`
	AvgResolutionHours float64 `json:"avgResolutionTimeHours"`
}

func dashboardFromDomain(m domain.DashboardMetrics) dashboardResponse {
	return dashboardResponse{
		TotalAlerts:        m.Total,
		OpenAlerts:         m.Open,
		InProgressAlerts:   m.InProgress,
		EscalatedAlerts:    m.Escalated,
		ResolvedAlerts:     m.Resolved,
		CriticalAlerts:     m.Critical,
		OverdueAlerts:      m.Overdue,
		ResolutionRate:     m.ResolutionRate,
		AvgResolutionHours: m.AvgResolutionHours,
	}
}

type trendDTO struct {
	Slope            float64 `json:"slope"`
	Direction        string  `json:"direction"`
	MagnitudePercent float64 `json:"magnitudePercent"`
}

func trendFromDomain(t domain.TrendResult) trendDTO {
	return trendDTO{Slope: t.Slope, Direction: string(t.Direction), MagnitudePercent: t.MagnitudePercent}
}

type sampleDTO struct {
	Period         string  `json:"period"`
	TotalEmissions float64 `json:"totalEmissions"`
	RecordCount    int     `json:"recordCount"`
}

type emissionTrendResponse struct {
	Samples []sampleDTO `json:"samples"`
	Trend   trendDTO    `json:"trend"`
}

func emissionTrendFromService(t dashboard.EmissionTrend) emissionTrendResponse {
	out := emissionTrendResponse{Samples: make([]sampleDTO, len(t.Samples)), Trend: trendFromDomain(t.Trend)}
	for i, s := range t.Samples {
		out.Samples[i] = sampleDTO{Period: s.PeriodKey, TotalEmissions: s.TotalEmissions, RecordCount: s.RecordCount}
	}
	return out
}

type trendRequest struct {
	Values []float64 `json:"values"`
}

type emissionRequest struct {
	RecordedAt *time.Time `json:"recordedAt,omitempty"`
	Amount     float64    `json:"amount"`
}
