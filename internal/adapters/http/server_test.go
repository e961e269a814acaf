package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastemetrics/internal/analytics"
	"wastemetrics/internal/domain"
	"wastemetrics/internal/observability"
	"wastemetrics/internal/ports"
	"wastemetrics/internal/services/charts"
	"wastemetrics/internal/services/companies"
	"wastemetrics/internal/services/imports"
)

type fakeCharts struct {
	err    error
	query  charts.Query
	period int
}

func (f *fakeCharts) RecoveryDistribution(_ context.Context, q charts.Query) (charts.Distribution, error) {
	f.query = q
	if f.err != nil {
		return charts.Distribution{}, f.err
	}
	return charts.Distribution{
		ChartData:  []analytics.BinResult{{Range: "0-20%", Min: 0, Max: 20, Count: 1, Companies: []domain.CompanyMetricSnapshot{{CompanyID: "A", RecoveryRate: 12.5}}}},
		Statistics: charts.Statistics{TotalCompanies: 1, Mean: 12.5},
		RawData:    []domain.CompanyMetricSnapshot{{CompanyID: "A", RecoveryRate: 12.5}},
	}, nil
}

func (f *fakeCharts) RecoveryTrends(_ context.Context, q charts.Query) (charts.Trends, error) {
	f.query = q
	if f.err != nil {
		return charts.Trends{}, f.err
	}
	return charts.Trends{
		Points:  []charts.TrendPoint{{Period: 2023, RecoveryRate: 57.5, DataSource: "waste_streams"}},
		Summary: charts.TrendSummary{TotalPeriods: 1, TrendDirection: analytics.TrendInsufficientData, LatestPeriod: 2023},
	}, nil
}

func (f *fakeCharts) SectorBreakdown(_ context.Context, period int, q charts.Query) (charts.SectorReport, error) {
	f.query, f.period = q, period
	return charts.SectorReport{Period: 2023, Sectors: []charts.SectorPoint{{Sector: "Retail"}}}, f.err
}

func (f *fakeCharts) HazardousTrends(_ context.Context, q charts.Query) ([]charts.HazardPoint, error) {
	f.query = q
	return []charts.HazardPoint{{Period: 2023, HazardousShare: 8.33}}, f.err
}

func (f *fakeCharts) CompanyMap(_ context.Context, q charts.Query) ([]charts.MapPoint, error) {
	f.query = q
	return []charts.MapPoint{}, f.err
}

type fakeCompanies struct {
	filter ports.CompanyFilter
	saved  domain.Company
}

func (f *fakeCompanies) List(_ context.Context, filter ports.CompanyFilter) ([]domain.Company, error) {
	f.filter = filter
	return []domain.Company{}, nil
}

func (f *fakeCompanies) Get(_ context.Context, id string) (domain.Company, error) {
	if id != "acme" {
		return domain.Company{}, companies.ErrNotFound
	}
	return domain.Company{ID: "acme", Name: "Acme"}, nil
}

func (f *fakeCompanies) Upsert(_ context.Context, c domain.Company) (domain.Company, error) {
	if c.Name == "" {
		return domain.Company{}, fmt.Errorf("%w: name is required", companies.ErrInvalidInput)
	}
	c.ID = "new-id"
	f.saved = c
	return c, nil
}

type fakeImports struct {
	imports map[string]domain.Import
}

func (f *fakeImports) Enqueue(_ context.Context, payload []byte) (domain.Import, error) {
	if len(payload) == 0 {
		return domain.Import{}, imports.ErrEmptyPayload
	}
	imp := domain.Import{ID: "imp-1", Status: domain.ImportQueued}
	f.imports[imp.ID] = imp
	return imp, nil
}

func (f *fakeImports) Status(_ context.Context, id string) (domain.Import, error) {
	imp, ok := f.imports[id]
	if !ok {
		return domain.Import{}, imports.ErrNotFound
	}
	return imp, nil
}

type fakeJobs struct {
	completed []string
	claimed   bool
}

func (f *fakeJobs) ClaimNext(context.Context) (ports.ImportJob, bool, error) {
	return ports.ImportJob{}, false, nil
}
func (f *fakeJobs) UpdateImportProgress(context.Context, string, float64) error { return nil }
func (f *fakeJobs) MarkCompleted(_ context.Context, jobID string) error {
	f.completed = append(f.completed, jobID)
	return nil
}
func (f *fakeJobs) MarkFailed(context.Context, string, string) error { return nil }
func (f *fakeJobs) StartJobForImport(_ context.Context, importID string) (string, error) {
	if f.claimed {
		return "", ports.ErrNotFound
	}
	return "job-" + importID, nil
}

// completingProcessor marks the import completed in the fake store.
type completingProcessor struct{ store *fakeImports }

func (p completingProcessor) Process(_ context.Context, importID string) error {
	imp := p.store.imports[importID]
	imp.Status, imp.Progress, imp.AcceptedRows = domain.ImportCompleted, 1, 3
	p.store.imports[importID] = imp
	return nil
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	handler http.Handler
	charts  *fakeCharts
	comps   *fakeCompanies
	imports *fakeImports
	jobs    *fakeJobs
	dbErr   error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		charts:  &fakeCharts{},
		comps:   &fakeCompanies{},
		imports: &fakeImports{imports: map[string]domain.Import{}},
		jobs:    &fakeJobs{},
	}
	reg := prometheus.NewRegistry()
	srv := New(Deps{
		Charts:         ts.charts,
		Companies:      ts.comps,
		Imports:        ts.imports,
		Jobs:           ts.jobs,
		Processor:      completingProcessor{store: ts.imports},
		DB:             pingFunc(func(context.Context) error { return ts.dbErr }),
		Logger:         observability.DiscardLogger(),
		Metrics:        observability.NewMetrics(reg),
		Gatherer:       reg,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	ts.handler = srv.Routes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body io.Reader) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestRecoveryDistribution(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/charts/waste-recovery-distribution?minPeriod=2020&sector=Retail", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Len(t, data["chartData"], 1)
	assert.Len(t, data["rawData"], 1)
	assert.Contains(t, data, "statistics")
	assert.Contains(t, data, "sectorBreakdown")
	assert.Equal(t, charts.Query{MinPeriod: 2020, Sector: "Retail"}, ts.charts.query)
}

func TestRecoveryDistribution_NoData(t *testing.T) {
	ts := newTestServer(t)
	ts.charts.err = charts.ErrNoData

	rec, body := ts.do(t, http.MethodGet, "/api/charts/waste-recovery-distribution", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": "no data found"}, body)
}

func TestRecoveryDistribution_FetchFailureIsGeneric(t *testing.T) {
	ts := newTestServer(t)
	ts.charts.err = errors.New("load recovery rates: dial tcp 10.0.0.5:5432: connection refused")

	rec, body := ts.do(t, http.MethodGet, "/api/charts/waste-recovery-distribution", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": "internal server error"}, body)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestRecoveryDistribution_BadParameter(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/charts/waste-recovery-distribution?minPeriod=last-year", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "minPeriod")
}

func TestRecoveryTrends(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/charts/waste-recovery-trends", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	points := body["data"].([]any)
	require.Len(t, points, 1)
	assert.Equal(t, 57.5, points[0].(map[string]any)["recoveryRate"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "insufficient_data", summary["trendDirection"])
	assert.Equal(t, float64(2023), summary["latestPeriod"])
}

func TestWasteBySector_Period(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/api/charts/waste-by-sector?period=2022", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2022, ts.charts.period)
}

func TestCompanyMap_EmptyListIsNotAnError(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/companies/map", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["data"])
}

func TestCompanies(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/companies/acme", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme", body["data"].(map[string]any)["name"])

	rec, body = ts.do(t, http.MethodGet, "/api/companies/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "company not found", body["error"])

	rec, _ = ts.do(t, http.MethodGet, "/api/companies?sector=Retail&limit=10&offset=20", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ports.CompanyFilter{Sector: "Retail", Limit: 10, Offset: 20}, ts.comps.filter)
}

func TestUpsertCompany(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/companies", strings.NewReader(`{"name":"Acme","sector":"Retail","latitude":1.5,"longitude":2}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new-id", body["data"].(map[string]any)["id"])
	assert.Equal(t, 1.5, *ts.comps.saved.Latitude)

	rec, body = ts.do(t, http.MethodPost, "/api/companies", strings.NewReader(`{"name":""}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid company: name is required", body["error"])

	rec, _ = ts.do(t, http.MethodPost, "/api/companies", strings.NewReader(`{"name":"Acme","revenue":3}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateImport_Async(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/imports", strings.NewReader("company_id,reporting_period,metric,value\n"))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, map[string]any{"importId": "imp-1"}, body["data"])
	assert.Empty(t, ts.jobs.completed)
}

func TestCreateImport_Wait(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/imports?wait=true&timeout=5", strings.NewReader("company_id,reporting_period,metric,value\n"))

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(3), data["acceptedRows"])
	assert.Equal(t, []string{"job-imp-1"}, ts.jobs.completed)
}

func TestCreateImport_WaitAfterWorkerClaimed(t *testing.T) {
	ts := newTestServer(t)
	ts.jobs.claimed = true

	rec, body := ts.do(t, http.MethodPost, "/api/imports?wait=true", strings.NewReader("company_id,reporting_period,metric,value\n"))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, map[string]any{"importId": "imp-1"}, body["data"])
	assert.Empty(t, ts.jobs.completed)
}

func TestCreateImport_EmptyBody(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/imports", strings.NewReader(""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty import payload", body["error"])
}

func TestGetImport_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/api/imports/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.dbErr = errors.New("pool closed")
	rec, body = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/api/charts/waste-recovery-trends", nil)

	rec, _ := ts.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wastemetrics_http_requests_total{method="GET",route="/api/charts/waste-recovery-trends",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/charts/waste-recovery-trends", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()

	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
