package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"wastemetrics/internal/domain"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{40, 10, 30, 20})

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 25.0, s.Mean)
	assert.Equal(t, 30.0, s.Median, "upper-middle element for even counts")
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 40.0, s.Max)
	assert.Equal(t, 11.18, s.Rounded().StdDev)
}

func TestSummarize_OddCount(t *testing.T) {
	s := Summarize([]float64{5, 1, 3})
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 3.0, s.Mean)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{}, Summarize([]float64{math.NaN()}))
}

func TestSummarize_SingleValue(t *testing.T) {
	s := Summarize([]float64{42})
	assert.Equal(t, Summary{Count: 1, Mean: 42, Median: 42, Min: 42, Max: 42}, s)
}

func TestShare(t *testing.T) {
	high := func(v float64) bool { return v >= 80 }

	n, pct := Share([]float64{90, 10, 85}, high)
	assert.Equal(t, 2, n)
	assert.Equal(t, 66.67, pct)

	n, pct = Share(nil, high)
	assert.Zero(t, n)
	assert.Zero(t, pct)
}

func TestDirection(t *testing.T) {
	assert.Equal(t, TrendInsufficientData, Direction(nil))
	assert.Equal(t, TrendInsufficientData, Direction([]float64{50}))
	assert.Equal(t, TrendImproving, Direction([]float64{40, 10, 45}))
	assert.Equal(t, TrendDeclining, Direction([]float64{40, 38.5}))
	assert.Equal(t, TrendStable, Direction([]float64{40, 80, 40.5}))
}

func TestCompanyRates(t *testing.T) {
	records := []domain.WasteStreamRecord{
		rec("A", 2021, "Total Waste Generated", val(100), "", ""),
		rec("A", 2021, "Total Waste Recovered", val(10), "", ""),
		rec("A", 2022, "Total Waste Generated", val(200), "", ""),
		rec("A", 2022, "Total Waste Recovered", val(150), "", ""),
		rec("A", 2023, "Total Waste Recovered", val(1), "", ""),
		rec("B", 2022, "Total Waste Recovered", val(5), "", ""),
	}

	got := CompanyRates(records)

	assert.Equal(t, []domain.CompanyMetricSnapshot{{CompanyID: "A", ReportingPeriod: 2022, RecoveryRate: 75}}, got)
}

func TestLatestPerCompany(t *testing.T) {
	got := LatestPerCompany([]domain.CompanyMetricSnapshot{
		{CompanyID: "B", ReportingPeriod: 2020, RecoveryRate: 10},
		{CompanyID: "A", ReportingPeriod: 2022, RecoveryRate: 50},
		{CompanyID: "B", ReportingPeriod: 2023, RecoveryRate: 20},
		{CompanyID: "A", ReportingPeriod: 2021, RecoveryRate: 40},
	})

	assert.Equal(t, []domain.CompanyMetricSnapshot{
		{CompanyID: "A", ReportingPeriod: 2022, RecoveryRate: 50},
		{CompanyID: "B", ReportingPeriod: 2023, RecoveryRate: 20},
	}, got)
}
