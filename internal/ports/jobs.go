package ports

import "context"

type ImportJob struct {
	ID       string
	ImportID string
}

// JobRepository supports claiming and updating import jobs.
type JobRepository interface {
	ClaimNext(ctx context.Context) (job ImportJob, found bool, err error)
	UpdateImportProgress(ctx context.Context, importID string, progress float64) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	StartJobForImport(ctx context.Context, importID string) (jobID string, err error)
}
