package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wastemetrics/internal/ports"
)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.ImportJob, found bool, err error) {
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, import_id FROM import_jobs
			WHERE status = 'queued'
			ORDER BY queued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		`).Scan(&job.ID, &job.ImportID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := startJob(ctx, tx, job.ID, job.ImportID); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return ports.ImportJob{}, false, err
	}
	return job, found, nil
}

func startJob(ctx context.Context, tx *sql.Tx, jobID, importID string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE import_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, jobID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE imports SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1
	`, importID)
	return err
}

func (db *DB) UpdateImportProgress(ctx context.Context, importID string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	_, err := db.SQL.ExecContext(ctx, `UPDATE imports SET progress=$2 WHERE id=$1`, importID, progress)
	return err
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var importID string
		if err := tx.QueryRowContext(ctx, `SELECT import_id FROM import_jobs WHERE id=$1`, jobID).Scan(&importID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE import_jobs SET status='completed', finished_at=now() WHERE id=$1`, jobID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE imports SET status='completed', progress=1, finished_at=now() WHERE id=$1`, importID)
		return err
	})
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var importID string
		if err := tx.QueryRowContext(ctx, `SELECT import_id FROM import_jobs WHERE id=$1`, jobID).Scan(&importID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE import_jobs SET status='failed', last_error=$2, finished_at=now() WHERE id=$1`, jobID, reason); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE imports SET status='failed', finished_at=now() WHERE id=$1`, importID)
		return err
	})
}

// StartJobForImport marks the queued job of an import as running and returns
// its id. It returns ports.ErrNotFound when no queued job exists.
func (db *DB) StartJobForImport(ctx context.Context, importID string) (string, error) {
	var jobID string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM import_jobs
			WHERE import_id = $1 AND status = 'queued'
			FOR UPDATE SKIP LOCKED
		`, importID).Scan(&jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return ports.ErrNotFound
		}
		if err != nil {
			return err
		}
		return startJob(ctx, tx, jobID, importID)
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}
