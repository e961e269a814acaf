package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"wastemetrics/internal/services/charts"
	"wastemetrics/internal/services/companies"
	"wastemetrics/internal/services/imports"
)

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Summary any  `json:"summary,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// badRequest marks a malformed request, such as an unparsable query parameter.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Success: true, Data: data})
}

// writeError maps err onto a status code. Causes of 5xx responses are logged
// and replaced with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"
	var br badRequest
	switch {
	case errors.Is(err, charts.ErrNoData):
		status, msg = http.StatusNotFound, charts.ErrNoData.Error()
	case errors.Is(err, companies.ErrNotFound), errors.Is(err, imports.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.As(err, &br),
		errors.Is(err, companies.ErrInvalidInput),
		errors.Is(err, imports.ErrEmptyPayload),
		errors.Is(err, imports.ErrInvalidCSV):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "request timed out"
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, errorEnvelope{Success: false, Error: msg})
}
