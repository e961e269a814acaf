package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/ports"
)

// ImportRepository

func (db *DB) CreateImport(ctx context.Context, imp domain.Import) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO imports (id, status, progress, payload_key, created_at)
			VALUES ($1, 'queued', 0, $2, $3)
		`, imp.ID, imp.PayloadKey, imp.CreatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO import_jobs (import_id) VALUES ($1)`, imp.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("create import: %w", err)
	}
	return nil
}

func (db *DB) GetImport(ctx context.Context, id string) (domain.Import, error) {
	var (
		imp      domain.Import
		status   string
		rawErrs  []byte
		finished sql.NullTime
	)
	err := db.SQL.QueryRowContext(ctx, `
		SELECT id, status, progress, payload_key, accepted_rows, rejected_rows, errors, created_at, finished_at
		FROM imports WHERE id = $1
	`, id).Scan(&imp.ID, &status, &imp.Progress, &imp.PayloadKey, &imp.AcceptedRows, &imp.RejectedRows, &rawErrs, &imp.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return imp, ports.ErrNotFound
	}
	if err != nil {
		return imp, fmt.Errorf("get import %s: %w", id, err)
	}
	imp.Status = domain.ImportStatus(status)
	if finished.Valid {
		t := finished.Time
		imp.FinishedAt = &t
	}
	if len(rawErrs) > 0 {
		if err := json.Unmarshal(rawErrs, &imp.Errors); err != nil {
			return imp, fmt.Errorf("decode import errors: %w", err)
		}
	}
	return imp, nil
}

func (db *DB) SaveImportResult(ctx context.Context, id string, accepted, rejected int, rowErrors []domain.RowError) error {
	if rowErrors == nil {
		rowErrors = []domain.RowError{}
	}
	raw, err := json.Marshal(rowErrors)
	if err != nil {
		return err
	}
	_, err = db.SQL.ExecContext(ctx, `
		UPDATE imports SET accepted_rows=$2, rejected_rows=$3, errors=$4 WHERE id=$1
	`, id, accepted, rejected, raw)
	if err != nil {
		return fmt.Errorf("save import result %s: %w", id, err)
	}
	return nil
}

// PayloadStore keeps uploaded CSVs in the import_payloads table. It is the
// fallback ports.BlobStore when no bucket is configured.
type PayloadStore struct {
	DB *DB
}

func (s PayloadStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.DB.SQL.ExecContext(ctx, `
		INSERT INTO import_payloads (key, data, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data
	`, key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store payload %s: %w", key, err)
	}
	return nil
}

func (s PayloadStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.DB.SQL.QueryRowContext(ctx, `SELECT data FROM import_payloads WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payload %s: %w", key, err)
	}
	return data, nil
}
