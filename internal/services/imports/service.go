package imports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/ports"
)

var (
	ErrNotFound     = errors.New("import not found")
	ErrEmptyPayload = errors.New("empty import payload")
)

// Service accepts CSV uploads and reports on their progress. The work itself
// is done by a Processor, normally from the import workers.
type Service struct {
	imports ports.ImportRepository
	blobs   ports.BlobStore
	clock   clockwork.Clock
	logger  *slog.Logger
}

func New(imports ports.ImportRepository, blobs ports.BlobStore, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{imports: imports, blobs: blobs, clock: clock, logger: logger}
}

// Enqueue stores payload and queues an import job for it.
func (s *Service) Enqueue(ctx context.Context, payload []byte) (domain.Import, error) {
	if len(bytes.TrimSpace(bytes.TrimPrefix(payload, utf8BOM))) == 0 {
		return domain.Import{}, ErrEmptyPayload
	}
	id := uuid.NewString()
	imp := domain.Import{
		ID:         id,
		Status:     domain.ImportQueued,
		PayloadKey: "imports/" + id + ".csv",
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.blobs.Put(ctx, imp.PayloadKey, payload); err != nil {
		return domain.Import{}, fmt.Errorf("store import payload: %w", err)
	}
	if err := s.imports.CreateImport(ctx, imp); err != nil {
		return domain.Import{}, err
	}
	s.logger.Info("import queued", "import_id", id, "bytes", len(payload))
	return imp, nil
}

func (s *Service) Status(ctx context.Context, id string) (domain.Import, error) {
	imp, err := s.imports.GetImport(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.Import{}, ErrNotFound
	}
	if err != nil {
		return domain.Import{}, err
	}
	return imp, nil
}
