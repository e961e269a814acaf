package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/ports"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &DB{SQL: sqlDB}, mock
}

func TestListWasteStreams(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "company_id", "reporting_period", "metric", "value", "unit", "treatment_method", "hazardousness"}).
		AddRow("w1", "acme", 2022, "Total Waste Generated", 1000.0, "t", "", "").
		AddRow("w2", "acme", 2022, "Total Waste Recovered", nil, "t", "Recycling", "")
	mock.ExpectQuery("SELECT id, company_id, reporting_period, metric, value").
		WithArgs(2015).
		WillReturnRows(rows)

	got, err := db.ListWasteStreams(context.Background(), 2015)
	require.NoError(t, err)

	require.Len(t, got, 2)
	require.NotNil(t, got[0].Value)
	assert.Equal(t, 1000.0, *got[0].Value)
	assert.Nil(t, got[1].Value)
	assert.Equal(t, "Recycling", got[1].TreatmentMethod)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListWasteStreams_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM waste_streams").WillReturnError(errors.New("connection reset"))

	_, err := db.ListWasteStreams(context.Background(), 2015)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list waste streams")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCompanyMetrics(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT company_id, reporting_period, metric_name, value").
		WithArgs(2020).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "reporting_period", "metric_name", "value"}).
			AddRow("acme", 2021, "Total Waste Generated", 500.0))

	got, err := db.ListCompanyMetrics(context.Background(), 2020)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "Total Waste Generated", got[0].MetricName)
	assert.Equal(t, 500.0, got[0].Amount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecoveryRates(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("recovery rate").
		WithArgs(2015).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "reporting_period", "value"}).
			AddRow("acme", 2022, 42.5).
			AddRow("beta", 2023, 88.0))

	got, err := db.ListRecoveryRates(context.Background(), 2015)
	require.NoError(t, err)

	assert.Equal(t, []domain.CompanyMetricSnapshot{
		{CompanyID: "acme", ReportingPeriod: 2022, RecoveryRate: 42.5},
		{CompanyID: "beta", ReportingPeriod: 2023, RecoveryRate: 88},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWasteStreams(t *testing.T) {
	db, mock := newMockDB(t)
	v := 250.0
	records := []domain.WasteStreamRecord{
		{CompanyID: "acme", ReportingPeriod: 2022, Metric: "Total Waste Generated", Value: &v, Unit: "t"},
		{CompanyID: "acme", ReportingPeriod: 2022, Metric: "Total Waste Recovered", Unit: "t", TreatmentMethod: "recycling"},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO waste_streams")
	prep.ExpectExec().
		WithArgs("acme", 2022, "Total Waste Generated", 250.0, "t", "", "", "imp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("acme", 2022, "Total Waste Recovered", nil, "t", "recycling", "", "imp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := db.InsertWasteStreams(context.Background(), "imp-1", records)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWasteStreams_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	v := 1.0

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO waste_streams").
		ExpectExec().
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	n, err := db.InsertWasteStreams(context.Background(), "", []domain.WasteStreamRecord{{CompanyID: "ghost", ReportingPeriod: 2022, Metric: "m", Value: &v}})

	require.Error(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWasteStreams_Empty(t *testing.T) {
	db, mock := newMockDB(t)

	n, err := db.InsertWasteStreams(context.Background(), "imp", nil)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var companyCols = []string{"id", "name", "sector", "country", "website", "latitude", "longitude"}

func TestListCompanies_BuildsFilter(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM companies WHERE sector = \$1 AND name ILIKE \$2 ORDER BY name, id LIMIT \$3`).
		WithArgs("Manufacturing", "%ac%", 10).
		WillReturnRows(sqlmock.NewRows(companyCols).
			AddRow("acme", "Acme", "Manufacturing", "DE", "acme.com", 52.5, 13.4))

	got, err := db.ListCompanies(context.Background(), ports.CompanyFilter{Sector: "Manufacturing", Search: "ac", Limit: 10})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].Name)
	require.NotNil(t, got[0].Latitude)
	assert.Equal(t, 52.5, *got[0].Latitude)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCompany_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM companies WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(companyCols))

	_, err := db.GetCompany(context.Background(), "missing")

	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCompany(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO companies").
		WithArgs("acme", "Acme", "Manufacturing", "DE", "acme.com", nil, nil).
		WillReturnRows(sqlmock.NewRows(companyCols).
			AddRow("acme", "Acme", "Manufacturing", "DE", "acme.com", nil, nil))

	got, err := db.UpsertCompany(context.Background(), domain.Company{ID: "acme", Name: "Acme", Sector: "Manufacturing", Country: "DE", Website: "acme.com"})
	require.NoError(t, err)

	assert.Equal(t, "acme", got.ID)
	assert.Nil(t, got.Latitude)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`WHERE id = ANY`).
		WithArgs(`{"acme","be\"ta"}`).
		WillReturnRows(sqlmock.NewRows(companyCols).
			AddRow("acme", "Acme", "Manufacturing", "DE", "", nil, nil))

	got, err := db.Lookup(context.Background(), []string{"acme", `be"ta`})
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Equal(t, "Manufacturing", got["acme"].Sector)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup_NoIDs(t *testing.T) {
	db, mock := newMockDB(t)

	got, err := db.Lookup(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNext(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(sqlmock.NewRows([]string{"id", "import_id"}).AddRow("job-1", "imp-1"))
	mock.ExpectExec("UPDATE import_jobs SET status='running'").WithArgs("job-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE imports SET status='running'").WithArgs("imp-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, found, err := db.ClaimNext(context.Background())
	require.NoError(t, err)

	assert.True(t, found)
	assert.Equal(t, ports.ImportJob{ID: "job-1", ImportID: "imp-1"}, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNext_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(sqlmock.NewRows([]string{"id", "import_id"}))
	mock.ExpectCommit()

	_, found, err := db.ClaimNext(context.Background())

	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT import_id FROM import_jobs").WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"import_id"}).AddRow("imp-1"))
	mock.ExpectExec("UPDATE import_jobs SET status='failed'").WithArgs("job-1", "bad header").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE imports SET status='failed'").WithArgs("imp-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, db.MarkFailed(context.Background(), "job-1", "bad header"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartJobForImport_NoQueuedJob(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("WHERE import_id = \\$1 AND status = 'queued'").WithArgs("imp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := db.StartJobForImport(context.Background(), "imp-1")

	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateImportProgress_Clamps(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE imports SET progress").WithArgs("imp-1", 1.0).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.UpdateImportProgress(context.Background(), "imp-1", 1.7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAndGetImport(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO imports").WithArgs("imp-1", "imports/imp-1.csv", created).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO import_jobs").WithArgs("imp-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, db.CreateImport(context.Background(), domain.Import{ID: "imp-1", PayloadKey: "imports/imp-1.csv", CreatedAt: created}))

	mock.ExpectQuery("FROM imports WHERE id").WithArgs("imp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "progress", "payload_key", "accepted_rows", "rejected_rows", "errors", "created_at", "finished_at"}).
			AddRow("imp-1", "completed", 1.0, "imports/imp-1.csv", 10, 1, []byte(`[{"line":3,"reason":"bad value"}]`), created, created))

	imp, err := db.GetImport(context.Background(), "imp-1")
	require.NoError(t, err)

	assert.Equal(t, domain.ImportCompleted, imp.Status)
	assert.Equal(t, 10, imp.AcceptedRows)
	assert.Equal(t, []domain.RowError{{Line: 3, Reason: "bad value"}}, imp.Errors)
	require.NotNil(t, imp.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveImportResult(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE imports SET accepted_rows").
		WithArgs("imp-1", 4, 0, []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.SaveImportResult(context.Background(), "imp-1", 4, 0, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayloadStore(t *testing.T) {
	db, mock := newMockDB(t)
	store := PayloadStore{DB: db}

	mock.ExpectExec("INSERT INTO import_payloads").
		WithArgs("k", []byte("a,b"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Put(context.Background(), "k", []byte("a,b")))

	mock.ExpectQuery("SELECT data FROM import_payloads").WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("a,b")))
	data, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b"), data)

	mock.ExpectQuery("SELECT data FROM import_payloads").WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	_, err = store.Get(context.Background(), "gone")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
