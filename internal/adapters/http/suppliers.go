package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"esgwatch/internal/services/suppliers"
)

func (s *Server) postClassify(w http.ResponseWriter, r *http.Request) {
	var req snapshotDTO
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, classificationFromDomain(s.suppliers.Classify(req.toDomain())))
}

func (s *Server) postSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if !decode(w, r, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	sup, err := s.suppliers.Upsert(r.Context(), suppliers.Input{
		ID:       req.ID,
		Name:     req.Name,
		Website:  req.Website,
		Country:  req.Country,
		Active:   active,
		Snapshot: req.snapshotDTO.toDomain(),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if sup.CreatedAt.Equal(sup.UpdatedAt) {
		status = http.StatusCreated
	}
	writeJSON(w, status, supplierFromDomain(sup))
}

func (s *Server) getSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := s.suppliers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplierFromDomain(sup))
}

func (s *Server) postSupplierClassify(w http.ResponseWriter, r *http.Request) {
	sup, err := s.suppliers.Reclassify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplierFromDomain(sup))
}

func (s *Server) getSupplierValidation(w http.ResponseWriter, r *http.Request) {
	sup, err := s.suppliers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validationFromDomain(s.suppliers.Validate(sup.Snapshot)))
}

func (s *Server) postSupplierEmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.suppliers.Get(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var req emissionRequest
	if !decode(w, r, &req) {
		return
	}
	at := s.now()
	if req.RecordedAt != nil {
		at = *req.RecordedAt
	}
	if err := s.dashboard.RecordEmission(r.Context(), id, at, req.Amount); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
