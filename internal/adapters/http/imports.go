package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	importrunner "wastemetrics/internal/workers/importrunner"
)

const (
	maxImportBody        = 10 << 20
	defaultImportTimeout = 30
)

type importAccepted struct {
	ImportID string `json:"importId"`
}

func (s *Server) createImport(w http.ResponseWriter, r *http.Request) {
	wait, timeout := false, defaultImportTimeout
	if err := bindQuery(r, "wait", &wait); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := bindQuery(r, "timeout", &timeout); err != nil {
		s.writeError(w, r, err)
		return
	}
	if timeout <= 0 {
		timeout = defaultImportTimeout
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		s.writeError(w, r, badRequest{fmt.Errorf("read import body: %w", err)})
		return
	}
	imp, err := s.Imports.Enqueue(r.Context(), payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !wait {
		writeData(w, http.StatusAccepted, importAccepted{ImportID: imp.ID})
		return
	}

	// Blocking path: run the same processor the workers use.
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(timeout)*time.Second)
	defer cancel()
	if err := importrunner.ProcessInline(ctx, s.Jobs, s.Processor, imp.ID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, r, err)
			return
		}
		if errors.Is(err, importrunner.ErrAlreadyClaimed) {
			writeData(w, http.StatusAccepted, importAccepted{ImportID: imp.ID})
			return
		}
		// The failure is recorded on the import itself.
		s.Logger.Warn("inline import failed", "import_id", imp.ID, "error", err)
	}
	status, err := s.Imports.Status(r.Context(), imp.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, status)
}

func (s *Server) getImport(w http.ResponseWriter, r *http.Request) {
	imp, err := s.Imports.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, imp)
}
