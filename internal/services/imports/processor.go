package imports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/observability"
	"wastemetrics/internal/ports"
)

// ProgressRecorder reports how far an import has got, from 0 to 1.
type ProgressRecorder interface {
	UpdateImportProgress(ctx context.Context, importID string, progress float64) error
}

// Processor validates a queued import's CSV and stores the accepted rows.
type Processor struct {
	imports   ports.ImportRepository
	waste     ports.WasteRepository
	blobs     ports.BlobStore
	directory ports.CompanyDirectory
	progress  ProgressRecorder
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewProcessor(
	imports ports.ImportRepository,
	waste ports.WasteRepository,
	blobs ports.BlobStore,
	directory ports.CompanyDirectory,
	progress ProgressRecorder,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Processor {
	return &Processor{
		imports:   imports,
		waste:     waste,
		blobs:     blobs,
		directory: directory,
		progress:  progress,
		logger:    logger,
		metrics:   metrics,
	}
}

// Process runs one import. Row-level problems are recorded on the import and
// do not fail it; an unreadable payload or a storage error does.
func (p *Processor) Process(ctx context.Context, importID string) error {
	err := p.process(ctx, importID)
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	p.metrics.ImportsProcessed.WithLabelValues(outcome).Inc()
	return err
}

func (p *Processor) process(ctx context.Context, importID string) error {
	log := p.logger.With("import_id", importID)

	imp, err := p.imports.GetImport(ctx, importID)
	if err != nil {
		return fmt.Errorf("load import: %w", err)
	}
	data, err := p.blobs.Get(ctx, imp.PayloadKey)
	if err != nil {
		return fmt.Errorf("load payload %s: %w", imp.PayloadKey, err)
	}

	res, err := Parse(data)
	if errors.Is(err, ErrInvalidCSV) {
		if saveErr := p.imports.SaveImportResult(ctx, importID, 0, 0, []domain.RowError{{Reason: err.Error()}}); saveErr != nil {
			log.Warn("save import result failed", "error", saveErr)
		}
		return err
	}
	if err != nil {
		return err
	}
	p.report(ctx, log, importID, 0.25)

	if err := p.rejectUnknownCompanies(ctx, res); err != nil {
		return err
	}
	p.report(ctx, log, importID, 0.5)

	accepted := 0
	if len(res.Rows) > 0 {
		accepted, err = p.waste.InsertWasteStreams(ctx, importID, res.Records())
		if err != nil {
			return fmt.Errorf("store waste streams: %w", err)
		}
	}
	p.report(ctx, log, importID, 0.9)

	if err := p.imports.SaveImportResult(ctx, importID, accepted, res.Rejected, res.Errors); err != nil {
		return err
	}
	p.metrics.ImportRowsAccepted.Add(float64(accepted))
	p.metrics.ImportRowsRejected.Add(float64(res.Rejected))
	log.Info("import processed", "accepted", accepted, "rejected", res.Rejected)
	return nil
}

func (p *Processor) report(ctx context.Context, log *slog.Logger, importID string, progress float64) {
	if err := p.progress.UpdateImportProgress(ctx, importID, progress); err != nil {
		log.Warn("update import progress failed", "error", err)
	}
}

// rejectUnknownCompanies drops rows whose company is not in the directory.
func (p *Processor) rejectUnknownCompanies(ctx context.Context, res *ParseResult) error {
	if len(res.Rows) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, row := range res.Rows {
		seen[row.Record.CompanyID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	known, err := p.directory.Lookup(ctx, ids)
	if err != nil {
		return fmt.Errorf("load company directory: %w", err)
	}
	kept := res.Rows[:0]
	for _, row := range res.Rows {
		if _, ok := known[row.Record.CompanyID]; !ok {
			res.reject(row.Line, "unknown company %q", row.Record.CompanyID)
			continue
		}
		kept = append(kept, row)
	}
	res.Rows = kept
	sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Line < res.Errors[j].Line })
	return nil
}
