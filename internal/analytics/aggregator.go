// Package analytics turns waste-stream records into per-period totals, rates,
// recovery-rate histograms and distribution summaries. Every function is a
// pure transformation of its arguments.
package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"wastemetrics/internal/domain"
)

// UnknownSector groups companies missing from the directory.
const UnknownSector = "Unknown"

// Source records which inputs contributed to a period's totals.
type Source uint8

const (
	SourceWasteStreams Source = 1 << iota
	SourceCompanyMetrics
)

// Label names the combination of sources.
func (s Source) Label() string {
	switch s {
	case SourceWasteStreams:
		return "waste_streams"
	case SourceCompanyMetrics:
		return "company_metrics"
	case SourceWasteStreams | SourceCompanyMetrics:
		return "combined"
	}
	return "none"
}

// StringSet is a set of identifiers.
type StringSet map[string]struct{}

func (s StringSet) Add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SectorAggregate holds one sector's flows within a period.
type SectorAggregate struct {
	Generated decimal.Decimal
	Recovered decimal.Decimal
	Disposed  decimal.Decimal
	Companies StringSet
}

// Unclassified counts records whose treatment could not be mapped to a flow.
type Unclassified struct {
	Records int
	Value   decimal.Decimal
}

// PeriodAggregate accumulates every flow reported for one reporting period.
type PeriodAggregate struct {
	Period             int
	TotalGenerated     decimal.Decimal
	TotalRecovered     decimal.Decimal
	TotalDisposed      decimal.Decimal
	TotalRecycled      decimal.Decimal
	HazardousWaste     decimal.Decimal
	NonHazardousWaste  decimal.Decimal
	CompaniesReporting StringSet
	SectorBreakdown    map[string]*SectorAggregate
	Unclassified       Unclassified
	Sources            Source
}

func newPeriodAggregate(period int) *PeriodAggregate {
	return &PeriodAggregate{
		Period:             period,
		CompaniesReporting: make(StringSet),
		SectorBreakdown:    make(map[string]*SectorAggregate),
	}
}

func (a *PeriodAggregate) sector(name string) *SectorAggregate {
	if name == "" {
		name = UnknownSector
	}
	s, ok := a.SectorBreakdown[name]
	if !ok {
		s = &SectorAggregate{Companies: make(StringSet)}
		a.SectorBreakdown[name] = s
	}
	return s
}

// Periods maps a reporting period to its aggregate.
type Periods map[int]*PeriodAggregate

func (p Periods) resolve(period int) *PeriodAggregate {
	agg, ok := p[period]
	if !ok {
		agg = newPeriodAggregate(period)
		p[period] = agg
	}
	return agg
}

// Sorted returns the aggregates in ascending period order.
func (p Periods) Sorted() []*PeriodAggregate {
	out := make([]*PeriodAggregate, 0, len(p))
	for _, agg := range p {
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// Latest returns the aggregate with the highest period, or nil.
func (p Periods) Latest() *PeriodAggregate {
	var latest *PeriodAggregate
	for _, agg := range p {
		if latest == nil || agg.Period > latest.Period {
			latest = agg
		}
	}
	return latest
}

// Prune removes periods that no flow reached, such as a period whose only
// records were unclassified. It returns the number of periods removed.
func (p Periods) Prune() int {
	removed := 0
	for period, agg := range p {
		if agg.Sources == 0 {
			delete(p, period)
			removed++
		}
	}
	return removed
}

// Sources returns the union of every period's sources.
func (p Periods) Sources() Source {
	var s Source
	for _, agg := range p {
		s |= agg.Sources
	}
	return s
}

type flow int

const (
	flowIgnored flow = iota
	flowUnclassified
	flowGenerated
	flowHazardSubset
	flowRecovered
	flowDisposed
)

type route struct {
	flow     flow
	hazard   domain.Hazard
	recycled bool
}

// classify decides which accumulators a record feeds. The metric name takes
// precedence; the treatment method only routes records whose metric names no
// flow.
func classify(metric, treatmentMethod, hazardousness string) route {
	m := strings.ToLower(metric)
	treatment, _ := domain.ParseTreatment(treatmentMethod)
	switch {
	case strings.Contains(m, "generated"):
		if h := metricHazard(m); h != domain.HazardUnspecified {
			return route{flow: flowHazardSubset, hazard: h}
		}
		hazard, _ := domain.ParseHazard(hazardousness)
		return route{flow: flowGenerated, hazard: hazard}
	case containsAny(m, "recovered", "diverted", "recycled"):
		return route{flow: flowRecovered, recycled: treatment == domain.TreatmentRecycling || strings.Contains(m, "recycl")}
	case containsAny(m, "disposed", "disposal"):
		return route{flow: flowDisposed}
	case treatment.IsRecovery():
		return route{flow: flowRecovered, recycled: treatment == domain.TreatmentRecycling}
	case treatment.IsDisposal():
		return route{flow: flowDisposed}
	case treatment == domain.TreatmentUnknown && strings.Contains(m, "waste"):
		return route{flow: flowUnclassified}
	}
	return route{flow: flowIgnored}
}

func metricHazard(m string) domain.Hazard {
	switch {
	case containsAny(m, "non-hazardous", "non hazardous", "nonhazardous"):
		return domain.HazardNonHazardous
	case strings.Contains(m, "hazardous"):
		return domain.HazardHazardous
	}
	return domain.HazardUnspecified
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// AggregateByPeriod folds waste-stream records into per-period totals.
// sectors maps company id to sector; companies missing from it are grouped
// under UnknownSector. Records with an unrelated metric are skipped. A waste
// record with an unrecognised treatment is only tallied as Unclassified, so a
// period can hold nothing else; callers drop those with Prune.
func AggregateByPeriod(records []domain.WasteStreamRecord, sectors map[string]string) Periods {
	periods := make(Periods)
	for _, r := range records {
		rt := classify(r.Metric, r.TreatmentMethod, r.Hazardousness)
		if rt.flow == flowIgnored {
			continue
		}
		agg := periods.resolve(r.ReportingPeriod)
		value := decimal.NewFromFloat(r.Amount())
		if rt.flow == flowUnclassified {
			agg.Unclassified.Records++
			agg.Unclassified.Value = agg.Unclassified.Value.Add(value)
			continue
		}
		agg.Sources |= SourceWasteStreams
		agg.CompaniesReporting.Add(r.CompanyID)
		accumulate(agg, rt, value, r.CompanyID, sectors[r.CompanyID])
	}
	return periods
}

func accumulate(agg *PeriodAggregate, rt route, value decimal.Decimal, companyID, sectorName string) {
	switch rt.flow {
	case flowGenerated:
		agg.TotalGenerated = agg.TotalGenerated.Add(value)
		addHazard(agg, rt.hazard, value)
		s := agg.sector(sectorName)
		s.Generated = s.Generated.Add(value)
		s.Companies.Add(companyID)
	case flowHazardSubset:
		addHazard(agg, rt.hazard, value)
	case flowRecovered:
		agg.TotalRecovered = agg.TotalRecovered.Add(value)
		if rt.recycled {
			agg.TotalRecycled = agg.TotalRecycled.Add(value)
		}
		s := agg.sector(sectorName)
		s.Recovered = s.Recovered.Add(value)
		s.Companies.Add(companyID)
	case flowDisposed:
		agg.TotalDisposed = agg.TotalDisposed.Add(value)
		s := agg.sector(sectorName)
		s.Disposed = s.Disposed.Add(value)
		s.Companies.Add(companyID)
	}
}

func addHazard(agg *PeriodAggregate, h domain.Hazard, value decimal.Decimal) {
	switch h {
	case domain.HazardHazardous:
		agg.HazardousWaste = agg.HazardousWaste.Add(value)
	case domain.HazardNonHazardous:
		agg.NonHazardousWaste = agg.NonHazardousWaste.Add(value)
	}
}

// MergeCompanyMetrics fills gaps in periods from pre-aggregated company
// totals. Each accumulator, overall and per sector, takes the larger of the
// two sources; a merge never lowers a value. Periods that only the company
// metrics cover are added.
func MergeCompanyMetrics(periods Periods, metrics []domain.CompanyMetric, sectors map[string]string) {
	secondary := make(Periods)
	for _, m := range metrics {
		rt := classify(m.MetricName, "", "")
		switch rt.flow {
		case flowIgnored, flowUnclassified:
			continue
		}
		agg := secondary.resolve(m.ReportingPeriod)
		agg.CompaniesReporting.Add(m.CompanyID)
		accumulate(agg, rt, decimal.NewFromFloat(m.Amount()), m.CompanyID, sectors[m.CompanyID])
	}

	for period, src := range secondary {
		_, existed := periods[period]
		dst := periods.resolve(period)
		raised := !existed
		maxInto := func(dst *decimal.Decimal, src decimal.Decimal) {
			if src.GreaterThan(*dst) {
				*dst = src
				raised = true
			}
		}
		maxInto(&dst.TotalGenerated, src.TotalGenerated)
		maxInto(&dst.TotalRecovered, src.TotalRecovered)
		maxInto(&dst.TotalDisposed, src.TotalDisposed)
		maxInto(&dst.TotalRecycled, src.TotalRecycled)
		maxInto(&dst.HazardousWaste, src.HazardousWaste)
		maxInto(&dst.NonHazardousWaste, src.NonHazardousWaste)
		for name, s := range src.SectorBreakdown {
			d := dst.sector(name)
			maxInto(&d.Generated, s.Generated)
			maxInto(&d.Recovered, s.Recovered)
			maxInto(&d.Disposed, s.Disposed)
			for id := range s.Companies {
				d.Companies.Add(id)
			}
		}
		for id := range src.CompaniesReporting {
			dst.CompaniesReporting.Add(id)
		}
		if raised {
			dst.Sources |= SourceCompanyMetrics
		}
	}
}
