package ports

import (
	"context"

	"wastemetrics/internal/domain"
)

// CompanyDirectory resolves company ids to directory entries. Unknown ids
// are absent from the result.
type CompanyDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]domain.Company, error)
}

// DirectoryInvalidator drops cached directory entries after a change.
type DirectoryInvalidator interface {
	Invalidate(ctx context.Context, ids ...string) error
}

// BlobStore keeps uploaded import payloads.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
