package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"wastemetrics/internal/analytics"
	"wastemetrics/internal/domain"
	"wastemetrics/internal/services/charts"
)

const barWidth = 40

var (
	improving = color.New(color.FgGreen, color.Bold).SprintFunc()
	declining = color.New(color.FgRed, color.Bold).SprintFunc()
	steady    = color.New(color.FgYellow).SprintFunc()
)

func directionLabel(d analytics.TrendDirection) string {
	switch d {
	case analytics.TrendImproving:
		return improving(string(d))
	case analytics.TrendDeclining:
		return declining(string(d))
	}
	return steady(string(d))
}

func pct(v float64) string { return fmt.Sprintf("%.2f%%", v) }

func qty(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// histogramTable lays the bins out as rows with a bar scaled to the fullest
// bin. The out-of-range row only appears when it is non-empty.
func histogramTable(dist charts.Distribution) pterm.TableData {
	bins := dist.ChartData
	if dist.OutOfRange.Count > 0 {
		bins = append(append([]analytics.BinResult(nil), bins...), dist.OutOfRange)
	}
	maxCount := 0
	for _, b := range bins {
		maxCount = max(maxCount, b.Count)
	}

	data := pterm.TableData{{"Recovery rate", "Companies", ""}}
	for _, b := range bins {
		bar := ""
		if maxCount > 0 {
			bar = strings.Repeat("█", b.Count*barWidth/maxCount)
		}
		data = append(data, []string{b.Range, strconv.Itoa(b.Count), pterm.FgGreen.Sprint(bar)})
	}
	return data
}

func statisticsTable(s charts.Statistics) pterm.TableData {
	return pterm.TableData{
		{"Statistic", "Value"},
		{"Companies", strconv.Itoa(s.TotalCompanies)},
		{"Mean", pct(s.Mean)},
		{"Median", pct(s.Median)},
		{"Min", pct(s.Min)},
		{"Max", pct(s.Max)},
		{"Std dev", qty(s.StdDev)},
		{"High performers", fmt.Sprintf("%d (%s)", s.HighPerformers, pct(s.HighPerformersPct))},
		{"Low performers", fmt.Sprintf("%d (%s)", s.LowPerformers, pct(s.LowPerformersPct))},
	}
}

func sectorTable(sectors []charts.SectorRecovery) pterm.TableData {
	data := pterm.TableData{{"Sector", "Companies", "Avg", "Min", "Max"}}
	for _, s := range sectors {
		data = append(data, []string{s.Sector, strconv.Itoa(s.Companies), pct(s.AvgRecoveryRate), pct(s.MinRecoveryRate), pct(s.MaxRecoveryRate)})
	}
	return data
}

func trendsTable(points []charts.TrendPoint) pterm.TableData {
	data := pterm.TableData{{"Period", "Generated", "Recovered", "Disposed", "Recovery", "Recycling", "Disposal", "Companies", "Source"}}
	for _, p := range points {
		data = append(data, []string{
			strconv.Itoa(p.Period),
			qty(p.TotalGenerated),
			qty(p.TotalRecovered),
			qty(p.TotalDisposed),
			pct(p.RecoveryRate),
			pct(p.RecyclingRate),
			pct(p.DisposalRate),
			strconv.Itoa(p.CompaniesReporting),
			p.DataSource,
		})
	}
	return data
}

func summaryLines(s charts.TrendSummary) []string {
	return []string{
		fmt.Sprintf("Periods: %d", s.TotalPeriods),
		fmt.Sprintf("Average recovery rate: %s", pct(s.AvgRecoveryRate)),
		fmt.Sprintf("Trend: %s", directionLabel(s.TrendDirection)),
		fmt.Sprintf("Latest: %d at %s", s.LatestPeriod, pct(s.LatestRecoveryRate)),
		fmt.Sprintf("Data source: %s", s.DataSource),
	}
}

func rowErrorsTable(errs []domain.RowError) pterm.TableData {
	data := pterm.TableData{{"Line", "Reason"}}
	for _, e := range errs {
		data = append(data, []string{strconv.Itoa(e.Line), e.Reason})
	}
	return data
}

func renderTable(data pterm.TableData) string {
	out, _ := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	return out
}
