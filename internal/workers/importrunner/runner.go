package importrunner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"wastemetrics/internal/ports"
)

// ImportProcessor performs the import work for a job's import id.
type ImportProcessor interface {
	Process(ctx context.Context, importID string) error
}

// Runner claims queued import jobs and hands them to a fixed pool of workers.
type Runner struct {
	Repo         ports.JobRepository
	Processor    ImportProcessor
	Concurrency  int
	PollInterval time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger
}

// Run starts the dispatcher and workers and blocks until ctx is done and
// every claimed job has finished.
func (r Runner) Run(ctx context.Context) {
	if r.Concurrency < 1 {
		return
	}
	clock := r.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	jobsCh := make(chan ports.ImportJob, r.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < r.Concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				r.finish(ctx, idx, job)
			}
		}(i)
	}

	ticker := clock.NewTicker(r.PollInterval)
	defer ticker.Stop()
	defer wg.Wait()
	defer close(jobsCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !r.dispatch(ctx, jobsCh) {
				return
			}
		}
	}
}

// dispatch claims jobs until the queue is empty. It returns false once ctx
// is done.
func (r Runner) dispatch(ctx context.Context, jobsCh chan<- ports.ImportJob) bool {
	for {
		job, found, err := r.Repo.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			r.Logger.Error("import job claim failed", "error", err)
			return true
		}
		if !found {
			return true
		}
		select {
		case jobsCh <- job:
		case <-ctx.Done():
			// Claimed but never started; record it so it is not stuck running.
			_ = r.Repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "shutdown before processing")
			return false
		}
	}
}

func (r Runner) finish(ctx context.Context, idx int, job ports.ImportJob) {
	log := r.Logger.With("worker", idx, "job_id", job.ID, "import_id", job.ImportID)
	if err := r.Processor.Process(ctx, job.ImportID); err != nil {
		if markErr := r.Repo.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error()); markErr != nil {
			log.Error("mark import job failed", "error", markErr)
		}
		log.Warn("import job failed", "error", err)
		return
	}
	if err := r.Repo.MarkCompleted(context.WithoutCancel(ctx), job.ID); err != nil {
		log.Error("mark import job completed", "error", err)
	}
}

// ErrAlreadyClaimed is returned by ProcessInline when the import's job is no
// longer queued, usually because a background worker claimed it first.
var ErrAlreadyClaimed = errors.New("import job already claimed")

// ProcessInline starts and processes a specific import synchronously using
// the same processor as the background workers.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor ImportProcessor, importID string) error {
	jobID, err := repo.StartJobForImport(ctx, importID)
	if errors.Is(err, ports.ErrNotFound) {
		return ErrAlreadyClaimed
	}
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, importID); err != nil {
		_ = repo.MarkFailed(context.WithoutCancel(ctx), jobID, err.Error())
		return err
	}
	return repo.MarkCompleted(ctx, jobID)
}
