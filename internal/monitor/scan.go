package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"esgwatch/internal/domain"
)

// Result is the outcome of a scan. Partial is set when the scan stopped early
// because its context ended; Drafts then covers only the suppliers evaluated.
type Result struct {
	Drafts    []domain.AlertDraft
	Errors    []domain.RuleError
	Warnings  []string
	Evaluated int
	Partial   bool
}

// Monitor evaluates rule sets against supplier snapshots.
type Monitor struct {
	Now         func() time.Time
	Parallelism int
	// OnSupplier, when set, is called after each supplier is evaluated.
	OnSupplier func(supplierID string, drafts int)
}

func New(parallelism int) *Monitor {
	return &Monitor{Now: time.Now, Parallelism: parallelism}
}

type compiledRule struct {
	rule    domain.MonitoringRule
	metric  metricFunc
	compare compareFunc
}

// compile validates each enabled rule once. Invalid rules become RuleErrors and
// are skipped for every supplier.
func compile(rules []domain.MonitoringRule) ([]compiledRule, []domain.RuleError) {
	var ok []compiledRule
	var errs []domain.RuleError
	for _, r := range rules {
		if r.Disabled {
			continue
		}
		metric, err := lookupMetric(r.MetricSelector)
		if err != nil {
			errs = append(errs, domain.RuleError{Rule: r.Name, Reason: err.Error()})
			continue
		}
		cmp, err := lookupOperator(r.Operator)
		if err != nil {
			errs = append(errs, domain.RuleError{Rule: r.Name, Reason: err.Error()})
			continue
		}
		ok = append(ok, compiledRule{rule: r, metric: metric, compare: cmp})
	}
	return ok, errs
}

// Scan is the synchronous form: every supplier, every rule, no cancellation.
func Scan(snapshots []domain.SupplierSnapshot, rules []domain.MonitoringRule, now time.Time) ([]domain.AlertDraft, []domain.RuleError) {
	compiled, errs := compile(rules)
	var drafts []domain.AlertDraft
	for _, s := range snapshots {
		d, e := evaluateSupplier(s, compiled, now)
		drafts = append(drafts, d...)
		errs = append(errs, e...)
	}
	return drafts, errs
}

// Run scans in parallel and stops early when ctx ends, returning what was
// evaluated so far together with ctx.Err().
func (m *Monitor) Run(ctx context.Context, snapshots []domain.SupplierSnapshot, rules []domain.MonitoringRule) (Result, error) {
	now := m.Now()
	compiled, ruleErrs := compile(rules)
	res := Result{Errors: ruleErrs, Warnings: ScaleWarnings(rules)}

	type slot struct {
		done   bool
		drafts []domain.AlertDraft
		errs   []domain.RuleError
	}
	slots := make([]slot, len(snapshots))

	g, gctx := errgroup.WithContext(ctx)
	if m.Parallelism > 0 {
		g.SetLimit(m.Parallelism)
	}
	for i := range snapshots {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, e := evaluateSupplier(snapshots[i], compiled, now)
			slots[i] = slot{done: true, drafts: d, errs: e}
			if m.OnSupplier != nil {
				m.OnSupplier(snapshots[i].SupplierID, len(d))
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for _, s := range slots {
		if !s.done {
			continue
		}
		res.Evaluated++
		res.Drafts = append(res.Drafts, s.drafts...)
		res.Errors = append(res.Errors, s.errs...)
	}
	res.Partial = res.Evaluated < len(snapshots)
	if res.Partial && err == nil {
		err = context.Canceled
	}
	if !res.Partial {
		err = nil
	}
	return res, err
}

func evaluateSupplier(s domain.SupplierSnapshot, rules []compiledRule, now time.Time) ([]domain.AlertDraft, []domain.RuleError) {
	var drafts []domain.AlertDraft
	var errs []domain.RuleError
	for _, cr := range rules {
		value, ok := cr.metric(s, now)
		if !ok {
			errs = append(errs, domain.RuleError{
				Rule:   cr.rule.Name,
				Reason: fmt.Sprintf("supplier %s: metric %s unavailable", s.SupplierID, cr.rule.MetricSelector),
			})
			continue
		}
		if !cr.compare(value, cr.rule.ThresholdValue) {
			continue
		}
		drafts = append(drafts, draftFor(s, cr.rule, value, now))
	}
	return drafts, errs
}

func draftFor(s domain.SupplierSnapshot, r domain.MonitoringRule, value float64, now time.Time) domain.AlertDraft {
	threshold := r.ThresholdValue
	actual := value
	d := domain.AlertDraft{
		SupplierID: s.SupplierID,
		RuleName:   r.Name,
		Title:      fmt.Sprintf("%s: %s %s %s", r.Name, r.MetricSelector, r.Operator, formatValue(threshold)),
		Description: fmt.Sprintf("Supplier %s has %s = %s, which triggers %s %s.",
			s.SupplierID, r.MetricSelector, formatValue(value), r.Operator, formatValue(threshold)),
		Severity:       r.Severity,
		Category:       r.Category,
		ThresholdValue: &threshold,
		ActualValue:    &actual,
		DetectedAt:     now,
	}
	if r.DueInDays > 0 {
		d.DueIn = time.Duration(r.DueInDays) * 24 * time.Hour
	}
	return d
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
