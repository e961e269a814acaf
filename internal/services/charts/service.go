// Package charts assembles the dashboard chart payloads from the waste
// repositories and the analytics pipeline.
package charts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"wastemetrics/internal/analytics"
	"wastemetrics/internal/domain"
	"wastemetrics/internal/observability"
	"wastemetrics/internal/ports"
)

// ErrNoData means the query matched nothing to chart.
var ErrNoData = errors.New("no data found")

// Settings are the chart defaults.
type Settings struct {
	MinReportingPeriod     int
	HighPerformerThreshold float64
	LowPerformerThreshold  float64
}

type Service struct {
	waste     ports.WasteRepository
	directory ports.CompanyDirectory
	binner    *analytics.Binner
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func New(waste ports.WasteRepository, directory ports.CompanyDirectory, binner *analytics.Binner, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		waste:     waste,
		directory: directory,
		binner:    binner,
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *Service) minPeriod(q Query) int {
	if q.MinPeriod > 0 {
		return q.MinPeriod
	}
	return s.settings.MinReportingPeriod
}

// RecoveryDistribution bins every company's latest recovery rate.
func (s *Service) RecoveryDistribution(ctx context.Context, q Query) (Distribution, error) {
	snapshots, err := s.snapshots(ctx, q)
	if err != nil {
		return Distribution{}, err
	}
	if len(snapshots) == 0 {
		return Distribution{}, ErrNoData
	}

	hist := s.binner.Assign(snapshots)
	s.metrics.OutOfRangeSnapshots.Add(float64(hist.OutOfRange.Count))
	if hist.OutOfRange.Count > 0 {
		s.logger.Warn("recovery rates outside histogram range", "count", hist.OutOfRange.Count)
	}

	return Distribution{
		ChartData:       hist.Bins,
		OutOfRange:      hist.OutOfRange,
		Statistics:      s.statistics(snapshots),
		SectorBreakdown: sectorRecovery(snapshots),
		RawData:         snapshots,
	}, nil
}

func (s *Service) statistics(snapshots []domain.CompanyMetricSnapshot) Statistics {
	rates := make([]float64, len(snapshots))
	for i, snap := range snapshots {
		rates[i] = snap.RecoveryRate
	}
	sum := analytics.Summarize(rates).Rounded()
	high, highPct := analytics.Share(rates, func(v float64) bool { return v >= s.settings.HighPerformerThreshold })
	low, lowPct := analytics.Share(rates, func(v float64) bool { return v < s.settings.LowPerformerThreshold })
	return Statistics{
		TotalCompanies:    sum.Count,
		Mean:              sum.Mean,
		Median:            sum.Median,
		Min:               sum.Min,
		Max:               sum.Max,
		StdDev:            sum.StdDev,
		HighPerformers:    high,
		HighPerformersPct: highPct,
		LowPerformers:     low,
		LowPerformersPct:  lowPct,
	}
}

func sectorRecovery(snapshots []domain.CompanyMetricSnapshot) []SectorRecovery {
	bySector := make(map[string][]float64)
	for _, snap := range snapshots {
		bySector[snap.Sector] = append(bySector[snap.Sector], snap.RecoveryRate)
	}
	out := make([]SectorRecovery, 0, len(bySector))
	for sector, rates := range bySector {
		sum := analytics.Summarize(rates).Rounded()
		out = append(out, SectorRecovery{
			Sector:          sector,
			Companies:       sum.Count,
			AvgRecoveryRate: sum.Mean,
			MinRecoveryRate: sum.Min,
			MaxRecoveryRate: sum.Max,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sector < out[j].Sector })
	return out
}

// snapshots returns each company's latest recovery rate joined with the
// directory. A directly reported rate wins over the rate derived from the
// company's waste streams unless it belongs to an earlier period.
func (s *Service) snapshots(ctx context.Context, q Query) ([]domain.CompanyMetricSnapshot, error) {
	minPeriod := s.minPeriod(q)
	reported, err := s.waste.ListRecoveryRates(ctx, minPeriod)
	if err != nil {
		return nil, fmt.Errorf("load recovery rates: %w", err)
	}
	records, err := s.waste.ListWasteStreams(ctx, minPeriod)
	if err != nil {
		return nil, fmt.Errorf("load waste streams: %w", err)
	}

	latest := make(map[string]domain.CompanyMetricSnapshot)
	for _, snap := range analytics.CompanyRates(records) {
		latest[snap.CompanyID] = snap
	}
	for _, snap := range analytics.LatestPerCompany(reported) {
		if derived, ok := latest[snap.CompanyID]; ok && snap.ReportingPeriod < derived.ReportingPeriod {
			continue
		}
		snap.RecoveryRate = analytics.Round2(snap.RecoveryRate)
		latest[snap.CompanyID] = snap
	}
	if len(latest) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	companies, err := s.directory.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load company directory: %w", err)
	}

	out := make([]domain.CompanyMetricSnapshot, 0, len(ids))
	for _, id := range ids {
		snap := latest[id]
		c, ok := companies[id]
		snap.Name, snap.Sector, snap.Country = c.Name, c.Sector, c.Country
		if !ok || snap.Name == "" {
			snap.Name = id
		}
		if snap.Sector == "" {
			snap.Sector = analytics.UnknownSector
		}
		if q.Sector != "" && snap.Sector != q.Sector {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// RecoveryTrends aggregates every period and summarises the recovery trend.
func (s *Service) RecoveryTrends(ctx context.Context, q Query) (Trends, error) {
	periods, err := s.aggregate(ctx, q)
	if err != nil {
		return Trends{}, err
	}
	if len(periods) == 0 {
		return Trends{}, ErrNoData
	}

	sorted := periods.Sorted()
	points := make([]TrendPoint, len(sorted))
	rates := make([]float64, len(sorted))
	for i, agg := range sorted {
		r := analytics.ComputeRates(agg)
		rates[i] = r.RecoveryRate
		points[i] = TrendPoint{
			Period:              agg.Period,
			TotalGenerated:      analytics.Float(agg.TotalGenerated),
			TotalRecovered:      analytics.Float(agg.TotalRecovered),
			TotalDisposed:       analytics.Float(agg.TotalDisposed),
			TotalRecycled:       analytics.Float(agg.TotalRecycled),
			HazardousWaste:      analytics.Float(agg.HazardousWaste),
			RecoveryRate:        r.RecoveryRate,
			RecyclingRate:       r.RecyclingRate,
			DisposalRate:        r.DisposalRate,
			CompaniesReporting:  len(agg.CompaniesReporting),
			UnclassifiedRecords: agg.Unclassified.Records,
			DataSource:          agg.Sources.Label(),
		}
	}

	latest := points[len(points)-1]
	return Trends{
		Points: points,
		Summary: TrendSummary{
			TotalPeriods:       len(points),
			AvgRecoveryRate:    analytics.Round2(analytics.Summarize(rates).Mean),
			TrendDirection:     analytics.Direction(rates),
			LatestPeriod:       latest.Period,
			LatestRecoveryRate: latest.RecoveryRate,
			DataSource:         periods.Sources().Label(),
		},
	}, nil
}

// SectorBreakdown reports each sector's flows for period, or for the latest
// period when period is zero.
func (s *Service) SectorBreakdown(ctx context.Context, period int, q Query) (SectorReport, error) {
	periods, err := s.aggregate(ctx, q)
	if err != nil {
		return SectorReport{}, err
	}
	agg := periods[period]
	if period == 0 {
		agg = periods.Latest()
	}
	if agg == nil || len(agg.SectorBreakdown) == 0 {
		return SectorReport{}, ErrNoData
	}

	out := SectorReport{Period: agg.Period, Sectors: make([]SectorPoint, 0, len(agg.SectorBreakdown))}
	for name, sector := range agg.SectorBreakdown {
		out.Sectors = append(out.Sectors, SectorPoint{
			Sector:       name,
			Generated:    analytics.Float(sector.Generated),
			Recovered:    analytics.Float(sector.Recovered),
			Disposed:     analytics.Float(sector.Disposed),
			RecoveryRate: analytics.Percentage(sector.Recovered, sector.Generated),
			Companies:    len(sector.Companies),
		})
	}
	sort.Slice(out.Sectors, func(i, j int) bool {
		if out.Sectors[i].Generated != out.Sectors[j].Generated {
			return out.Sectors[i].Generated > out.Sectors[j].Generated
		}
		return out.Sectors[i].Sector < out.Sectors[j].Sector
	})
	return out, nil
}

// HazardousTrends reports hazardous and non-hazardous waste per period.
func (s *Service) HazardousTrends(ctx context.Context, q Query) ([]HazardPoint, error) {
	periods, err := s.aggregate(ctx, q)
	if err != nil {
		return nil, err
	}
	var out []HazardPoint
	for _, agg := range periods.Sorted() {
		if agg.HazardousWaste.IsZero() && agg.NonHazardousWaste.IsZero() {
			continue
		}
		out = append(out, HazardPoint{
			Period:         agg.Period,
			TotalGenerated: analytics.Float(agg.TotalGenerated),
			Hazardous:      analytics.Float(agg.HazardousWaste),
			NonHazardous:   analytics.Float(agg.NonHazardousWaste),
			HazardousShare: analytics.Percentage(agg.HazardousWaste, agg.TotalGenerated),
		})
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// CompanyMap returns companies with coordinates and a recovery rate.
func (s *Service) CompanyMap(ctx context.Context, q Query) ([]MapPoint, error) {
	snapshots, err := s.snapshots(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, ErrNoData
	}
	ids := make([]string, len(snapshots))
	for i, snap := range snapshots {
		ids[i] = snap.CompanyID
	}
	companies, err := s.directory.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load company directory: %w", err)
	}

	out := []MapPoint{}
	for _, snap := range snapshots {
		c := companies[snap.CompanyID]
		if c.Latitude == nil || c.Longitude == nil {
			continue
		}
		out = append(out, MapPoint{
			CompanyID:       snap.CompanyID,
			Name:            snap.Name,
			Sector:          snap.Sector,
			Country:         snap.Country,
			Latitude:        *c.Latitude,
			Longitude:       *c.Longitude,
			RecoveryRate:    snap.RecoveryRate,
			ReportingPeriod: snap.ReportingPeriod,
		})
	}
	return out, nil
}

// aggregate loads both waste sources and folds them into periods.
func (s *Service) aggregate(ctx context.Context, q Query) (analytics.Periods, error) {
	minPeriod := s.minPeriod(q)
	records, err := s.waste.ListWasteStreams(ctx, minPeriod)
	if err != nil {
		return nil, fmt.Errorf("load waste streams: %w", err)
	}
	companyMetrics, err := s.waste.ListCompanyMetrics(ctx, minPeriod)
	if err != nil {
		return nil, fmt.Errorf("load company metrics: %w", err)
	}

	sectors, err := s.sectors(ctx, records, companyMetrics)
	if err != nil {
		return nil, err
	}
	if q.Sector != "" {
		records, companyMetrics = filterSector(records, companyMetrics, sectors, q.Sector)
	}

	periods := analytics.AggregateByPeriod(records, sectors)
	analytics.MergeCompanyMetrics(periods, companyMetrics, sectors)

	unclassified := 0
	for _, agg := range periods {
		unclassified += agg.Unclassified.Records
	}
	pruned := periods.Prune()
	s.metrics.RecordsAggregated.Add(float64(len(records)))
	s.metrics.UnclassifiedRecords.Add(float64(unclassified))
	s.logger.Debug("aggregated waste streams",
		"records", len(records),
		"company_metrics", len(companyMetrics),
		"periods", len(periods),
		"unclassified", unclassified,
		"unclassified_only_periods", pruned,
	)
	return periods, nil
}

func (s *Service) sectors(ctx context.Context, records []domain.WasteStreamRecord, metrics []domain.CompanyMetric) (map[string]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, r := range records {
		add(r.CompanyID)
	}
	for _, m := range metrics {
		add(m.CompanyID)
	}
	companies, err := s.directory.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load company directory: %w", err)
	}
	out := make(map[string]string, len(companies))
	for id, c := range companies {
		if c.Sector != "" {
			out[id] = c.Sector
		}
	}
	return out, nil
}

func filterSector(records []domain.WasteStreamRecord, metrics []domain.CompanyMetric, sectors map[string]string, sector string) ([]domain.WasteStreamRecord, []domain.CompanyMetric) {
	match := func(id string) bool {
		s, ok := sectors[id]
		if !ok {
			s = analytics.UnknownSector
		}
		return s == sector
	}
	var rs []domain.WasteStreamRecord
	for _, r := range records {
		if match(r.CompanyID) {
			rs = append(rs, r)
		}
	}
	var ms []domain.CompanyMetric
	for _, m := range metrics {
		if match(m.CompanyID) {
			ms = append(ms, m)
		}
	}
	return rs, ms
}
