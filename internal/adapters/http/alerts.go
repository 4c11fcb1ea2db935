package httpadapter

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"esgwatch/internal/domain"
)

func (s *Server) postAlert(w http.ResponseWriter, r *http.Request) {
	var req alertCreateRequest
	if !decode(w, r, &req) {
		return
	}
	draft, err := req.toDraft()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if _, err := s.suppliers.Get(r.Context(), draft.SupplierID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = &domain.ValidationError{Field: "supplierId", Problem: "unknown supplier"}
		}
		s.writeDomainError(w, r, err)
		return
	}
	adm, err := s.alerts.Create(r.Context(), draft)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if adm.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, alertFromDomain(adm.Alert, s.now()))
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	f, includeSupplier, err := parseAlertFilter(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	list, err := s.alerts.List(r.Context(), f, includeSupplier)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	now := s.now()
	out := make([]alertResponse, len(list))
	for i, v := range list {
		out[i] = alertFromDomain(v.Alert, now)
		out[i].Supplier = supplierRefFromDomain(v.Supplier)
	}
	writeJSON(w, http.StatusOK, out)
}

func parseAlertFilter(r *http.Request) (domain.AlertFilter, bool, error) {
	q := r.URL.Query()
	var f domain.AlertFilter
	f.SupplierID = q.Get("supplierId")
	f.Category = q.Get("category")
	for _, v := range splitList(q.Get("status")) {
		st, err := domain.ParseAlertStatus(v)
		if err != nil {
			return f, false, err
		}
		f.Statuses = append(f.Statuses, st)
	}
	if v := q.Get("severity"); v != "" {
		sev, err := domain.ParseSeverity(v)
		if err != nil {
			return f, false, err
		}
		f.Severity = &sev
	}
	window, err := parseWindow(r)
	if err != nil {
		return f, false, err
	}
	f.Detected = window
	f.OnlyOverdue = q.Get("overdue") == "true"
	f.Unsettled = q.Get("unsettled") == "true"
	if f.Sort, err = domain.ParseAlertSortKey(q.Get("sort")); err != nil {
		return f, false, err
	}
	f.Desc = q.Get("order") == "desc"
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, false, &domain.ValidationError{Field: name, Problem: "must be a non-negative integer"}
			}
			*dst = n
		}
	}
	return f, q.Get("includeSupplier") == "true", nil
}

func (s *Server) getAlert(w http.ResponseWriter, r *http.Request) {
	a, err := s.alerts.Get(r.Context(), chi.URLParam(r, "id"))
	s.writeAlert(w, r, a, err)
}

func (s *Server) patchAlert(w http.ResponseWriter, r *http.Request) {
	var req alertPatchRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := req.toDomain()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	a, err := s.alerts.Update(r.Context(), chi.URLParam(r, "id"), p)
	s.writeAlert(w, r, a, err)
}

func (s *Server) postAlertStart(w http.ResponseWriter, r *http.Request) {
	a, err := s.alerts.Start(r.Context(), chi.URLParam(r, "id"))
	s.writeAlert(w, r, a, err)
}

func (s *Server) postAlertResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	a, err := s.alerts.Resolve(r.Context(), chi.URLParam(r, "id"), req.ResolvedBy, req.Notes)
	s.writeAlert(w, r, a, err)
}

func (s *Server) postAlertEscalate(w http.ResponseWriter, r *http.Request) {
	var req escalateRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.alerts.Escalate(r.Context(), chi.URLParam(r, "id"), req.EscalatedTo, req.Reason)
	s.writeAlert(w, r, a, err)
}

func (s *Server) postAlertClose(w http.ResponseWriter, r *http.Request) {
	a, err := s.alerts.Close(r.Context(), chi.URLParam(r, "id"))
	s.writeAlert(w, r, a, err)
}

func (s *Server) writeAlert(w http.ResponseWriter, r *http.Request, a domain.ComplianceAlert, err error) {
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alertFromDomain(a, s.now()))
}
