package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"esgwatch/internal/domain"
	"esgwatch/internal/ports"
	"esgwatch/internal/services/alerts"
	"esgwatch/internal/services/compliance"
	"esgwatch/internal/services/dashboard"
	"esgwatch/internal/services/scanner"
	"esgwatch/internal/services/suppliers"
	"esgwatch/internal/workers/scanrunner"
)

// Server exposes the services over JSON HTTP.
type Server struct {
	suppliers  *suppliers.Service
	alerts     *alerts.Service
	compliance *compliance.Service
	dashboard  *dashboard.Service
	scanner    *scanner.Service
	jobs       ports.JobRepository
	processor  scanrunner.ScanProcessor
	logger     *slog.Logger
	now        func() time.Time
}

type Deps struct {
	Suppliers  *suppliers.Service
	Alerts     *alerts.Service
	Compliance *compliance.Service
	Dashboard  *dashboard.Service
	Scanner    *scanner.Service
	Jobs       ports.JobRepository
	Processor  scanrunner.ScanProcessor
	Logger     *slog.Logger
	Now        func() time.Time
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{
		suppliers:  d.Suppliers,
		alerts:     d.Alerts,
		compliance: d.Compliance,
		dashboard:  d.Dashboard,
		scanner:    d.Scanner,
		jobs:       d.Jobs,
		processor:  d.Processor,
		logger:     d.Logger,
		now:        d.Now,
	}
}

// Routes returns a chi.Router with every handler mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/classify", s.postClassify)
	r.Route("/suppliers", func(r chi.Router) {
		r.Post("/", s.postSupplier)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSupplier)
			r.Post("/classify", s.postSupplierClassify)
			r.Get("/validation", s.getSupplierValidation)
			r.Post("/emissions", s.postSupplierEmission)
		})
	})

	r.Route("/alerts", func(r chi.Router) {
		r.Post("/", s.postAlert)
		r.Get("/", s.listAlerts)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getAlert)
			r.Patch("/", s.patchAlert)
			r.Post("/start", s.postAlertStart)
			r.Post("/resolve", s.postAlertResolve)
			r.Post("/escalate", s.postAlertEscalate)
			r.Post("/close", s.postAlertClose)
		})
	})

	r.Post("/scans", s.postScan)
	r.Get("/scans/{id}", s.getScan)
	r.Post("/scan/preview", s.postScanPreview)

	r.Get("/dashboard", s.getDashboard)
	r.Get("/emissions/trend", s.getEmissionTrend)
	r.Post("/trend", s.postTrend)
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Scans

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	id, err := s.scanner.Enqueue(r.Context(), scanner.TriggerAPI)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, map[string]string{"scanId": id})
		return
	}

	timeout := 30
	if v, err := strconv.Atoi(r.URL.Query().Get("timeout")); err == nil && v > 0 {
		timeout = v
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(timeout)*time.Second)
	defer cancel()
	// same processor as the background workers; a failed scan is reported in the body
	if err := scanrunner.ProcessInline(ctx, s.jobs, s.processor, id); err != nil {
		s.logger.Warn("inline scan failed", slog.String("scan_id", id), slog.String("error", err.Error()))
	}
	run, err := s.scanner.Status(context.WithoutCancel(ctx), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scanFromRun(run))
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	run, err := s.scanner.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scanFromRun(run))
}

func (s *Server) postScanPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decode(w, r, &req) {
		return
	}
	snaps := make([]domain.SupplierSnapshot, len(req.Suppliers))
	for i, d := range req.Suppliers {
		snaps[i] = d.toDomain()
	}
	var rules []domain.MonitoringRule
	if req.Rules != nil {
		rules = make([]domain.MonitoringRule, 0, len(req.Rules))
		for _, d := range req.Rules {
			rule, err := d.toDomain()
			if err != nil {
				s.writeDomainError(w, r, err)
				return
			}
			rules = append(rules, rule)
		}
	}
	res, err := s.compliance.Preview(r.Context(), snaps, rules)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewFromResult(res))
}

// Dashboard and trends

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	m, err := s.dashboard.Metrics(r.Context(), window)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardFromDomain(m))
}

func (s *Server) getEmissionTrend(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	t, err := s.dashboard.EmissionTrend(r.Context(), r.URL.Query().Get("supplierId"), window)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emissionTrendFromService(t))
}

func (s *Server) postTrend(w http.ResponseWriter, r *http.Request) {
	var req trendRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, trendFromDomain(domain.ComputeTrend(req.Values)))
}

// Helpers

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the domain error kinds onto status codes. Anything
// unrecognised is logged and reported as 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func parseTime(field, v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: field, Problem: "expected RFC3339 or YYYY-MM-DD"}
	}
	return t, nil
}

func parseWindow(r *http.Request) (domain.DateRange, error) {
	var window domain.DateRange
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := parseTime("from", v)
		if err != nil {
			return window, err
		}
		window.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime("to", v)
		if err != nil {
			return window, err
		}
		window.To = t
	}
	if !window.From.IsZero() && !window.To.IsZero() && window.To.Before(window.From) {
		return window, &domain.ValidationError{Field: "to", Problem: "before from"}
	}
	return window, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
