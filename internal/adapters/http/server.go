package httpadapter

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/observability"
	"wastemetrics/internal/ports"
	"wastemetrics/internal/services/charts"
	importrunner "wastemetrics/internal/workers/importrunner"
)

// ChartService builds the dashboard chart payloads.
type ChartService interface {
	RecoveryDistribution(ctx context.Context, q charts.Query) (charts.Distribution, error)
	RecoveryTrends(ctx context.Context, q charts.Query) (charts.Trends, error)
	SectorBreakdown(ctx context.Context, period int, q charts.Query) (charts.SectorReport, error)
	HazardousTrends(ctx context.Context, q charts.Query) ([]charts.HazardPoint, error)
	CompanyMap(ctx context.Context, q charts.Query) ([]charts.MapPoint, error)
}

// CompanyService manages the company directory.
type CompanyService interface {
	List(ctx context.Context, f ports.CompanyFilter) ([]domain.Company, error)
	Get(ctx context.Context, id string) (domain.Company, error)
	Upsert(ctx context.Context, c domain.Company) (domain.Company, error)
}

// ImportService queues CSV uploads and reports their status.
type ImportService interface {
	Enqueue(ctx context.Context, payload []byte) (domain.Import, error)
	Status(ctx context.Context, id string) (domain.Import, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Charts    ChartService
	Companies CompanyService
	Imports   ImportService
	Jobs      ports.JobRepository
	Processor importrunner.ImportProcessor
	DB        Pinger

	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	AllowedOrigins []string
}

type Server struct {
	Deps
}

func New(deps Deps) *Server {
	return &Server{Deps: deps}
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if len(s.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/charts", func(r chi.Router) {
			r.Get("/waste-recovery-distribution", s.recoveryDistribution)
			r.Get("/waste-recovery-trends", s.recoveryTrends)
			r.Get("/waste-by-sector", s.wasteBySector)
			r.Get("/hazardous-waste-trends", s.hazardousTrends)
		})
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", s.listCompanies)
			r.Post("/", s.upsertCompany)
			r.Get("/map", s.companyMap)
			r.Get("/{id}", s.getCompany)
		})
		r.Route("/imports", func(r chi.Router) {
			r.Post("/", s.createImport)
			r.Get("/{id}", s.getImport)
		})
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			s.Logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
