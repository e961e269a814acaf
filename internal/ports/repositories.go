package ports

import (
	"context"
	"errors"

	"wastemetrics/internal/domain"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// WasteRepository reads and writes waste-stream data. List methods only
// return rows with a non-null value and a period of at least minPeriod.
type WasteRepository interface {
	ListWasteStreams(ctx context.Context, minPeriod int) ([]domain.WasteStreamRecord, error)
	ListCompanyMetrics(ctx context.Context, minPeriod int) ([]domain.CompanyMetric, error)
	ListRecoveryRates(ctx context.Context, minPeriod int) ([]domain.CompanyMetricSnapshot, error)
	InsertWasteStreams(ctx context.Context, importID string, records []domain.WasteStreamRecord) (int, error)
}

// CompanyFilter narrows ListCompanies. Zero values match everything.
type CompanyFilter struct {
	Sector  string
	Country string
	Search  string
	Limit   int
	Offset  int
}

// CompanyRepository manages the company directory.
type CompanyRepository interface {
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]domain.Company, error)
	GetCompany(ctx context.Context, id string) (domain.Company, error)
	UpsertCompany(ctx context.Context, c domain.Company) (domain.Company, error)
}

// ImportRepository stores CSV imports and their outcome.
type ImportRepository interface {
	// CreateImport stores the import and queues a job for it.
	CreateImport(ctx context.Context, imp domain.Import) error
	GetImport(ctx context.Context, id string) (domain.Import, error)
	SaveImportResult(ctx context.Context, id string, accepted, rejected int, rowErrors []domain.RowError) error
}
