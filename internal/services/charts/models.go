package charts

import (
	"wastemetrics/internal/analytics"
	"wastemetrics/internal/domain"
)

// Query selects the data behind a chart. Zero values fall back to the
// service defaults and match every sector.
type Query struct {
	MinPeriod int
	Sector    string
}

// Statistics summarises the company recovery-rate distribution.
type Statistics struct {
	TotalCompanies    int     `json:"total_companies"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	StdDev            float64 `json:"std_dev"`
	HighPerformers    int     `json:"high_performers"`
	HighPerformersPct float64 `json:"high_performers_pct"`
	LowPerformers     int     `json:"low_performers"`
	LowPerformersPct  float64 `json:"low_performers_pct"`
}

// SectorRecovery is the recovery-rate picture of one sector.
type SectorRecovery struct {
	Sector          string  `json:"sector"`
	Companies       int     `json:"companies"`
	AvgRecoveryRate float64 `json:"avgRecoveryRate"`
	MinRecoveryRate float64 `json:"minRecoveryRate"`
	MaxRecoveryRate float64 `json:"maxRecoveryRate"`
}

// Distribution backs the waste-recovery-distribution chart.
type Distribution struct {
	ChartData       []analytics.BinResult          `json:"chartData"`
	OutOfRange      analytics.BinResult            `json:"outOfRange"`
	Statistics      Statistics                     `json:"statistics"`
	SectorBreakdown []SectorRecovery               `json:"sectorBreakdown"`
	RawData         []domain.CompanyMetricSnapshot `json:"rawData"`
}

// TrendPoint is one period of the waste-recovery-trends chart.
type TrendPoint struct {
	Period              int     `json:"period"`
	TotalGenerated      float64 `json:"totalGenerated"`
	TotalRecovered      float64 `json:"totalRecovered"`
	TotalDisposed       float64 `json:"totalDisposed"`
	TotalRecycled       float64 `json:"totalRecycled"`
	HazardousWaste      float64 `json:"hazardousWaste"`
	RecoveryRate        float64 `json:"recoveryRate"`
	RecyclingRate       float64 `json:"recyclingRate"`
	DisposalRate        float64 `json:"disposalRate"`
	CompaniesReporting  int     `json:"companiesReporting"`
	UnclassifiedRecords int     `json:"unclassifiedRecords"`
	DataSource          string  `json:"dataSource"`
}

// TrendSummary describes the series as a whole.
type TrendSummary struct {
	TotalPeriods       int                      `json:"totalPeriods"`
	AvgRecoveryRate    float64                  `json:"avgRecoveryRate"`
	TrendDirection     analytics.TrendDirection `json:"trendDirection"`
	LatestPeriod       int                      `json:"latestPeriod"`
	LatestRecoveryRate float64                  `json:"latestRecoveryRate"`
	DataSource         string                   `json:"dataSource"`
}

// Trends backs the waste-recovery-trends chart.
type Trends struct {
	Points  []TrendPoint
	Summary TrendSummary
}

// SectorPoint is one sector's flows within a period.
type SectorPoint struct {
	Sector       string  `json:"sector"`
	Generated    float64 `json:"generated"`
	Recovered    float64 `json:"recovered"`
	Disposed     float64 `json:"disposed"`
	RecoveryRate float64 `json:"recoveryRate"`
	Companies    int     `json:"companies"`
}

// SectorReport backs the waste-by-sector chart.
type SectorReport struct {
	Period  int           `json:"period"`
	Sectors []SectorPoint `json:"sectors"`
}

// HazardPoint is one period of the hazardous-waste-trends chart.
type HazardPoint struct {
	Period         int     `json:"period"`
	TotalGenerated float64 `json:"totalGenerated"`
	Hazardous      float64 `json:"hazardous"`
	NonHazardous   float64 `json:"nonHazardous"`
	HazardousShare float64 `json:"hazardousShare"`
}

// MapPoint places a company and its latest recovery rate on the map.
type MapPoint struct {
	CompanyID       string  `json:"companyId"`
	Name            string  `json:"name"`
	Sector          string  `json:"sector"`
	Country         string  `json:"country"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	RecoveryRate    float64 `json:"recoveryRate"`
	ReportingPeriod int     `json:"reportingPeriod"`
}
