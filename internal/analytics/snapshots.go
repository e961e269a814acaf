package analytics

import (
	"sort"

	"wastemetrics/internal/domain"
)

// CompanyRates derives each company's recovery rate for the latest period in
// which it reported waste generated. Companies that never reported a
// generated quantity are omitted. The result is ordered by company id and
// carries no directory details.
func CompanyRates(records []domain.WasteStreamRecord) []domain.CompanyMetricSnapshot {
	byCompany := make(map[string][]domain.WasteStreamRecord)
	for _, r := range records {
		if r.CompanyID == "" {
			continue
		}
		byCompany[r.CompanyID] = append(byCompany[r.CompanyID], r)
	}

	out := make([]domain.CompanyMetricSnapshot, 0, len(byCompany))
	for id, rs := range byCompany {
		var latest *PeriodAggregate
		for _, agg := range AggregateByPeriod(rs, nil) {
			if !agg.TotalGenerated.IsPositive() {
				continue
			}
			if latest == nil || agg.Period > latest.Period {
				latest = agg
			}
		}
		if latest == nil {
			continue
		}
		out = append(out, domain.CompanyMetricSnapshot{
			CompanyID:       id,
			ReportingPeriod: latest.Period,
			RecoveryRate:    ComputeRates(latest).RecoveryRate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	return out
}

// LatestPerCompany keeps the most recent snapshot of each company.
func LatestPerCompany(snapshots []domain.CompanyMetricSnapshot) []domain.CompanyMetricSnapshot {
	latest := make(map[string]domain.CompanyMetricSnapshot, len(snapshots))
	for _, s := range snapshots {
		if cur, ok := latest[s.CompanyID]; !ok || s.ReportingPeriod > cur.ReportingPeriod {
			latest[s.CompanyID] = s
		}
	}
	out := make([]domain.CompanyMetricSnapshot, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	return out
}
