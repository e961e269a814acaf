package domain

import (
	"math"
	"time"
)

// Company is an entry of the company directory.
type Company struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Sector    string   `json:"sector"`
	Country   string   `json:"country"`
	Website   string   `json:"website,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// WasteStreamRecord is one reported waste quantity for a company and period.
// Value is nil when the company reported the metric without a figure.
type WasteStreamRecord struct {
	ID              string
	CompanyID       string
	ReportingPeriod int
	Metric          string
	Value           *float64
	Unit            string
	TreatmentMethod string
	Hazardousness   string
}

// Amount returns the reported value. Absent, negative and non-finite values
// count as zero.
func (r WasteStreamRecord) Amount() float64 {
	return amount(r.Value)
}

// CompanyMetric is a pre-aggregated company total from the company_metrics table.
type CompanyMetric struct {
	CompanyID       string
	ReportingPeriod int
	MetricName      string
	Value           *float64
}

// Amount returns the metric value with the same defaults as WasteStreamRecord.
func (m CompanyMetric) Amount() float64 {
	return amount(m.Value)
}

func amount(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return 0
	}
	return *v
}

// CompanyMetricSnapshot is one company's recovery rate for a period, joined
// with its directory details.
type CompanyMetricSnapshot struct {
	CompanyID       string  `json:"companyId"`
	ReportingPeriod int     `json:"reportingPeriod"`
	RecoveryRate    float64 `json:"recoveryRate"`
	Name            string  `json:"name"`
	Sector          string  `json:"sector"`
	Country         string  `json:"country"`
}

// ImportStatus is the lifecycle state of a CSV import.
type ImportStatus string

const (
	ImportQueued    ImportStatus = "queued"
	ImportRunning   ImportStatus = "running"
	ImportCompleted ImportStatus = "completed"
	ImportFailed    ImportStatus = "failed"
)

// RowError describes a CSV row rejected during import.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Import tracks one uploaded waste-stream CSV.
type Import struct {
	ID           string       `json:"id"`
	Status       ImportStatus `json:"status"`
	Progress     float64      `json:"progress"`
	PayloadKey   string       `json:"-"`
	AcceptedRows int          `json:"acceptedRows"`
	RejectedRows int          `json:"rejectedRows"`
	Errors       []RowError   `json:"errors,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	FinishedAt   *time.Time   `json:"finishedAt,omitempty"`
}
