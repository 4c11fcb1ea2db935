package httpadapter

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgwatch/internal/adapters/memory"
	"esgwatch/internal/domain"
	"esgwatch/internal/monitor"
	"esgwatch/internal/services/alerts"
	"esgwatch/internal/services/compliance"
	"esgwatch/internal/services/dashboard"
	"esgwatch/internal/services/scanner"
	"esgwatch/internal/services/suppliers"
	"esgwatch/internal/workers/scanrunner"
)

var fixedNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	handler http.Handler
	store   *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore().WithClock(clock)
	store.SetRules([]domain.MonitoringRule{{
		Name: "low-env", Category: "environmental", MetricSelector: "environmental",
		Operator: "<", ThresholdValue: 40, Severity: domain.SeverityHigh,
	}})

	alertSvc := alerts.New(store, nil, logger, alerts.WithClock(clock))
	m := monitor.New(2)
	m.Now = clock
	compSvc := compliance.New(store, store, alertSvc, m, time.Minute, logger)
	srv := New(Deps{
		Suppliers:  suppliers.New(store).WithClock(clock),
		Alerts:     alertSvc,
		Compliance: compSvc,
		Dashboard:  dashboard.New(store, store).WithClock(clock),
		Scanner:    scanner.New(store),
		Jobs:       store,
		Processor:  scanrunner.ComplianceProcessor{Scanner: compSvc},
		Logger:     logger,
		Now:        clock,
	})
	return &harness{handler: srv.Routes(), store: store}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h *harness) createSupplier(t *testing.T, id string, env float64) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/suppliers", map[string]any{
		"id": id, "name": "Supplier " + id, "country": "DE", "website": "https://www." + id + ".example.com",
		"environmentalScore": env, "socialScore": 70, "governanceScore": 70,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSupplierEndpoints(t *testing.T) {
	h := newHarness(t)
	h.createSupplier(t, "acme", 20)

	rec := h.do(t, http.MethodGet, "/suppliers/acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sup := decodeBody[supplierResponse](t, rec)
	assert.Equal(t, "critical", sup.RiskTier)
	assert.Equal(t, "C+", sup.ESGRating)
	require.NotNil(t, sup.Domain)
	assert.Equal(t, "example.com", *sup.Domain)

	rec = h.do(t, http.MethodGet, "/suppliers/acme/validation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[validationResponse](t, rec)
	assert.False(t, v.Acceptable)
	assert.Equal(t, 5, v.Required)

	rec = h.do(t, http.MethodPost, "/suppliers/acme/classify", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/suppliers/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/suppliers", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassifyIsStateless(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/classify", map[string]any{
		"environmentalScore": 95, "socialScore": 95, "governanceScore": 95,
		"hasRenewableEnergyProgram": true, "hasCarbonNeutralityPlan": true,
		"hasFairLaborCertification": true, "hasChildLaborPolicy": true, "hasSafeWorkingConditions": true,
		"certifications": []string{"ISO14001"},
		"nextAuditDate":  fixedNow.AddDate(0, 6, 0),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeBody[classificationResponse](t, rec)
	assert.Equal(t, "low", c.RiskTier)
	assert.Equal(t, "A+", c.ESGRating)
	assert.Equal(t, 0, c.RiskFactorScore)
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.createSupplier(t, "acme", 20)

	rec := h.do(t, http.MethodPost, "/alerts", map[string]any{
		"supplierId": "acme", "title": "Missing audit", "severity": "critical", "category": "audit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[alertResponse](t, rec)
	assert.Equal(t, "open", created.Status)
	assert.Equal(t, fixedNow.Add(24*time.Hour), created.DueDate)

	rec = h.do(t, http.MethodPost, "/alerts", map[string]any{
		"supplierId": "acme", "title": "Missing audit again", "category": "audit",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeBody[alertResponse](t, rec).ID)

	base := "/alerts/" + created.ID
	rec = h.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in_progress", decodeBody[alertResponse](t, rec).Status)

	rec = h.do(t, http.MethodPost, base+"/escalate", map[string]any{"escalatedTo": "cso", "reason": "stalled"})
	require.Equal(t, http.StatusOK, rec.Code)
	esc := decodeBody[alertResponse](t, rec)
	assert.Equal(t, "escalated", esc.Status)
	require.NotNil(t, esc.EscalatedAt)

	rec = h.do(t, http.MethodPost, base+"/resolve", map[string]any{"resolvedBy": "cso", "notes": "audited"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[alertResponse](t, rec)
	assert.Equal(t, "resolved", res.Status)
	assert.Nil(t, res.EscalatedAt)
	assert.False(t, res.IsOverdue)

	rec = h.do(t, http.MethodPost, base+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, base+"/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPatch, base, map[string]any{"title": "late edit"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/alerts/missing/start", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAlertForUnknownSupplier(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/alerts", map[string]any{"supplierId": "ghost", "title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/alerts", map[string]any{"supplierId": "ghost", "title": "x", "severity": "extreme"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAlertsWithFilters(t *testing.T) {
	h := newHarness(t)
	h.createSupplier(t, "a", 20)
	h.createSupplier(t, "b", 20)
	for _, body := range []map[string]any{
		{"supplierId": "a", "title": "one", "category": "x", "severity": "low"},
		{"supplierId": "b", "title": "two", "category": "y", "severity": "critical"},
	} {
		require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/alerts", body).Code)
	}

	rec := h.do(t, http.MethodGet, "/alerts?sort=severity&order=desc&includeSupplier=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]alertResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "critical", list[0].Severity)
	require.NotNil(t, list[0].Supplier)
	assert.Equal(t, "Supplier b", list[0].Supplier.Name)

	rec = h.do(t, http.MethodGet, "/alerts?supplierId=a", nil)
	list = decodeBody[[]alertResponse](t, rec)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Supplier)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/alerts?sort=colour", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/alerts?status=pending", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/alerts?limit=-1", nil).Code)
}

func TestScanWaitAdmitsAlerts(t *testing.T) {
	h := newHarness(t)
	h.createSupplier(t, "dirty", 10)
	h.createSupplier(t, "clean", 90)

	rec := h.do(t, http.MethodPost, "/scans?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	scan := decodeBody[scanResponse](t, rec)
	assert.Equal(t, "completed", scan.Status)
	assert.Equal(t, 2, scan.Evaluated)
	assert.Equal(t, 1, scan.Admitted)

	rec = h.do(t, http.MethodGet, "/scans/"+scan.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/scans", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	queued := decodeBody[map[string]string](t, rec)
	rec = h.do(t, http.MethodGet, "/scans/"+queued["scanId"], nil)
	assert.Equal(t, "queued", decodeBody[scanResponse](t, rec).Status)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/scans/nope", nil).Code)
}

func TestScanPreview(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/scan/preview", map[string]any{
		"suppliers": []map[string]any{{"supplierId": "x", "environmentalScore": 3, "socialScore": 80, "governanceScore": 80}},
		"rules": []map[string]any{
			{"name": "legacy", "category": "environmental", "metricSelector": "environmental", "operator": "<", "thresholdValue": 2.5},
			{"name": "bad-op", "metricSelector": "daysUntilNextAudit", "operator": "~", "thresholdValue": 1},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decodeBody[previewResponse](t, rec)
	assert.Equal(t, 1, p.Evaluated)
	assert.Empty(t, p.Drafts)
	require.Len(t, p.RuleErrors, 1)
	assert.Equal(t, "bad-op", p.RuleErrors[0].Rule)
	assert.Len(t, p.Warnings, 1)
}

func TestDashboardAndTrends(t *testing.T) {
	h := newHarness(t)
	h.createSupplier(t, "acme", 20)
	rec := h.do(t, http.MethodPost, "/alerts", map[string]any{"supplierId": "acme", "title": "t", "severity": "critical"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, http.MethodGet, "/dashboard?from=2026-08-01&to=2026-09-30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeBody[dashboardResponse](t, rec)
	assert.Equal(t, 1, d.TotalAlerts)
	assert.Equal(t, 1, d.OpenAlerts)
	assert.Equal(t, 1, d.CriticalAlerts)
	assert.Equal(t, 0.0, d.ResolutionRate)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/dashboard?from=yesterday", nil).Code)

	for i, amount := range []float64{50, 40, 30} {
		at := time.Date(2026, time.Month(i+1), 10, 0, 0, 0, 0, time.UTC)
		rec = h.do(t, http.MethodPost, "/suppliers/acme/emissions", map[string]any{"recordedAt": at, "amount": amount})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec = h.do(t, http.MethodGet, "/emissions/trend?supplierId=acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	et := decodeBody[emissionTrendResponse](t, rec)
	require.Len(t, et.Samples, 3)
	assert.Equal(t, "2026-01", et.Samples[0].Period)
	assert.Equal(t, "decreasing", et.Trend.Direction)
	assert.InDelta(t, -10.0, et.Trend.Slope, 1e-9)

	rec = h.do(t, http.MethodPost, "/trend", map[string]any{"values": []float64{5}})
	require.Equal(t, http.StatusOK, rec.Code)
	tr := decodeBody[trendDTO](t, rec)
	assert.Equal(t, "stable", tr.Direction)
	assert.Equal(t, 0.0, tr.Slope)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
