package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgwatch/internal/domain"
	"esgwatch/internal/ports"
)

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newAlert(t *testing.T, id, supplier, category string) domain.ComplianceAlert {
	t.Helper()
	a, err := domain.NewAlert(id, domain.AlertDraft{SupplierID: supplier, Title: "t", Category: category}, now)
	require.NoError(t, err)
	return a
}

func TestAdmitAlertIsIdempotentPerSupplierCategory(t *testing.T) {
	s := NewStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	first, created, err := s.AdmitAlert(ctx, newAlert(t, "a1", "s1", "env"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), first.Version)

	dup, created, err := s.AdmitAlert(ctx, newAlert(t, "a2", "s1", "env"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a1", dup.ID)

	_, created, err = s.AdmitAlert(ctx, newAlert(t, "a3", "s1", "social"))
	require.NoError(t, err)
	assert.True(t, created)

	// once the open alert moves on, a new one may be admitted
	started, err := first.Start(now)
	require.NoError(t, err)
	_, err = s.UpdateAlert(ctx, started, first.Version)
	require.NoError(t, err)

	_, created, err = s.AdmitAlert(ctx, newAlert(t, "a4", "s1", "env"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestUpdateAlertCompareAndSwap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a, _, err := s.AdmitAlert(ctx, newAlert(t, "a1", "s1", "env"))
	require.NoError(t, err)

	r, err := a.Resolve("alice", "done", now)
	require.NoError(t, err)
	saved, err := s.UpdateAlert(ctx, r, a.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	// writing against the old version loses
	_, err = s.UpdateAlert(ctx, r, a.Version)
	assert.ErrorIs(t, err, domain.ErrStaleVersion)

	got, err := s.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status)

	_, err = s.UpdateAlert(ctx, newAlert(t, "missing", "s1", "env"), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAlerts(t *testing.T) {
	s := NewStore().WithClock(func() time.Time { return now })
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		_, _, err := s.AdmitAlert(ctx, newAlert(t, id, "s-"+id, "env"))
		require.NoError(t, err)
	}
	out, err := s.ListAlerts(ctx, domain.AlertFilter{Sort: domain.SortBySupplier, Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)

	out, err = s.ListAlerts(ctx, domain.AlertFilter{SupplierID: "s-c"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, err = s.GetAlert(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSuppliers(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveSupplier(ctx, domain.Supplier{Record: domain.Record{ID: "s2"}, Active: true, Snapshot: domain.SupplierSnapshot{SupplierID: "s2"}}))
	require.NoError(t, s.SaveSupplier(ctx, domain.Supplier{Record: domain.Record{ID: "s1"}, Active: true, Snapshot: domain.SupplierSnapshot{SupplierID: "s1"}}))
	require.NoError(t, s.SaveSupplier(ctx, domain.Supplier{Record: domain.Record{ID: "s3"}, Active: false}))

	snaps, err := s.ListActiveSuppliers(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "s1", snaps[0].SupplierID)

	_, err = s.GetSupplier(ctx, "s9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMonthlyEmissionTotals(t *testing.T) {
	s := NewStore()
	s.AddEmission("s1", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 10)
	s.AddEmission("s1", time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), 5)
	s.AddEmission("s1", time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), 20)
	s.AddEmission("s2", time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), 100)

	got, err := s.MonthlyEmissionTotals(context.Background(), "s1", domain.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []domain.EmissionSample{
		{PeriodKey: "2026-01", TotalEmissions: 15, RecordCount: 2},
		{PeriodKey: "2026-02", TotalEmissions: 20, RecordCount: 1},
	}, got)

	all, err := s.MonthlyEmissionTotals(context.Background(), "", domain.DateRange{From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 120.0, all[0].TotalEmissions)
}

func TestScanJobs(t *testing.T) {
	s := NewStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	scanID, err := s.EnqueueScan(ctx, "api")
	require.NoError(t, err)

	job, found, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, scanID, job.ScanID)

	_, found, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.MarkCompleted(ctx, job.ID, ports.ScanSummary{Evaluated: 3, Drafts: 2, Admitted: 1}))
	run, err := s.GetScan(ctx, scanID)
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 3, run.Evaluated)

	inline, err := s.EnqueueScan(ctx, "api")
	require.NoError(t, err)
	jobID, err := s.StartJobForScan(ctx, inline)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, jobID, "boom", ports.ScanSummary{Evaluated: 2, Admitted: 1}))
	run, err = s.GetScan(ctx, inline)
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)
	assert.Equal(t, "boom", *run.FailReason)
	assert.Equal(t, 2, run.Evaluated)
	assert.Equal(t, 1, run.Admitted)

	_, err = s.StartJobForScan(ctx, inline)
	assert.ErrorIs(t, err, domain.ErrConflict)
}
