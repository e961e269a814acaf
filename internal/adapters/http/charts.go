package httpadapter

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"wastemetrics/internal/services/charts"
)

// bindQuery decodes an optional form-style query parameter into dest. dest is
// left untouched when the parameter is absent.
func bindQuery(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return badRequest{fmt.Errorf("invalid %s parameter: %w", name, err)}
	}
	return nil
}

func chartQuery(r *http.Request) (charts.Query, error) {
	var q charts.Query
	if err := bindQuery(r, "minPeriod", &q.MinPeriod); err != nil {
		return q, err
	}
	if err := bindQuery(r, "sector", &q.Sector); err != nil {
		return q, err
	}
	if q.MinPeriod < 0 {
		return q, badRequest{fmt.Errorf("minPeriod must not be negative")}
	}
	return q, nil
}

func (s *Server) recoveryDistribution(w http.ResponseWriter, r *http.Request) {
	q, err := chartQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dist, err := s.Charts.RecoveryDistribution(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, dist)
}

func (s *Server) recoveryTrends(w http.ResponseWriter, r *http.Request) {
	q, err := chartQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trends, err := s.Charts.RecoveryTrends(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Data: trends.Points, Summary: trends.Summary})
}

func (s *Server) wasteBySector(w http.ResponseWriter, r *http.Request) {
	q, err := chartQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var period int
	if err := bindQuery(r, "period", &period); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.Charts.SectorBreakdown(r.Context(), period, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (s *Server) hazardousTrends(w http.ResponseWriter, r *http.Request) {
	q, err := chartQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	points, err := s.Charts.HazardousTrends(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, points)
}

func (s *Server) companyMap(w http.ResponseWriter, r *http.Request) {
	q, err := chartQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	points, err := s.Charts.CompanyMap(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, points)
}
