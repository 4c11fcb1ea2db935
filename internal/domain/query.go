package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AlertSortKey selects one of a fixed set of orderings.
type AlertSortKey string

const (
	SortByDetectedAt AlertSortKey = "detected_at"
	SortByDueDate    AlertSortKey = "due_date"
	SortBySeverity   AlertSortKey = "severity"
	SortByStatus     AlertSortKey = "status"
	SortBySupplier   AlertSortKey = "supplier"
)

type alertLess func(a, b ComplianceAlert) bool

var statusRank = map[AlertStatus]int{
	StatusOpen:       0,
	StatusInProgress: 1,
	StatusEscalated:  2,
	StatusResolved:   3,
	StatusClosed:     4,
}

var alertComparators = map[AlertSortKey]alertLess{
	SortByDetectedAt: func(a, b ComplianceAlert) bool { return a.DetectedAt.Before(b.DetectedAt) },
	SortByDueDate:    func(a, b ComplianceAlert) bool { return a.DueDate.Before(b.DueDate) },
	SortBySeverity:   func(a, b ComplianceAlert) bool { return a.Severity < b.Severity },
	SortByStatus:     func(a, b ComplianceAlert) bool { return statusRank[a.Status] < statusRank[b.Status] },
	SortBySupplier:   func(a, b ComplianceAlert) bool { return a.SupplierID < b.SupplierID },
}

func ParseAlertSortKey(s string) (AlertSortKey, error) {
	if s == "" {
		return SortByDetectedAt, nil
	}
	key := AlertSortKey(strings.ToLower(s))
	if _, ok := alertComparators[key]; !ok {
		return "", &ValidationError{Field: "sort", Problem: fmt.Sprintf("unknown sort key %q", s)}
	}
	return key, nil
}

// SortAlerts orders alerts in place; ties fall back to ID for stable output.
func SortAlerts(alerts []ComplianceAlert, key AlertSortKey, desc bool) {
	less, ok := alertComparators[key]
	if !ok {
		less = alertComparators[SortByDetectedAt]
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ID < b.ID
	})
}

// SupplierRef is the supplier summary joined onto an alert listing.
type SupplierRef struct {
	ID       string
	Name     string
	RiskTier RiskTier
}

// AlertView is an alert with its optionally eager-loaded supplier.
type AlertView struct {
	Alert    ComplianceAlert
	Supplier *SupplierRef
}

// JoinSuppliers builds views for alerts. lookup is consulted once per distinct
// supplier; a nil lookup leaves every Supplier nil.
func JoinSuppliers(alerts []ComplianceAlert, lookup func(id string) (SupplierRef, bool)) []AlertView {
	out := make([]AlertView, len(alerts))
	refs := map[string]*SupplierRef{}
	for i, a := range alerts {
		out[i].Alert = a
		if lookup == nil {
			continue
		}
		ref, seen := refs[a.SupplierID]
		if !seen {
			if r, ok := lookup(a.SupplierID); ok {
				ref = &r
			}
			refs[a.SupplierID] = ref
		}
		out[i].Supplier = ref
	}
	return out
}

// AlertFilter narrows an alert listing. Zero-valued fields do not filter.
type AlertFilter struct {
	SupplierID  string
	Statuses    []AlertStatus
	Severity    *Severity
	Category    string
	Detected    DateRange
	OnlyOverdue bool
	Unsettled   bool
	Sort        AlertSortKey
	Desc        bool
	Limit       int
	Offset      int
}

// Match applies the predicate part of the filter.
func (f AlertFilter) Match(a ComplianceAlert, now time.Time) bool {
	if a.Deleted {
		return false
	}
	if f.SupplierID != "" && a.SupplierID != f.SupplierID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Severity != nil && a.Severity != *f.Severity {
		return false
	}
	if f.Category != "" && !strings.EqualFold(a.Category, f.Category) {
		return false
	}
	if !f.Detected.Contains(a.DetectedAt) {
		return false
	}
	if f.Unsettled && a.Status.Settled() {
		return false
	}
	if f.OnlyOverdue && !a.IsOverdue(now) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already sorted slice.
func (f AlertFilter) Page(alerts []ComplianceAlert) []ComplianceAlert {
	if f.Offset > 0 {
		if f.Offset >= len(alerts) {
			return []ComplianceAlert{}
		}
		alerts = alerts[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(alerts) {
		alerts = alerts[:f.Limit]
	}
	return alerts
}
