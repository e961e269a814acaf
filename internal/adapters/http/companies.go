package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/ports"
)

const maxCompanyBody = 64 << 10

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	var f ports.CompanyFilter
	for name, dest := range map[string]any{
		"sector":  &f.Sector,
		"country": &f.Country,
		"search":  &f.Search,
		"limit":   &f.Limit,
		"offset":  &f.Offset,
	} {
		if err := bindQuery(r, name, dest); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	out, err := s.Companies.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	c, err := s.Companies.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) upsertCompany(w http.ResponseWriter, r *http.Request) {
	var c domain.Company
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCompanyBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		s.writeError(w, r, badRequest{fmt.Errorf("invalid company body: %w", err)})
		return
	}
	saved, err := s.Companies.Upsert(r.Context(), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, saved)
}
