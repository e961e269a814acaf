package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"wastemetrics/internal/services/charts"
)

// Report is the content of an exported PDF. Either section may be nil when
// there was no data for it.
type Report struct {
	Generated    time.Time
	Distribution *charts.Distribution
	Trends       *charts.Trends
}

var (
	headerColor = [3]int{40, 40, 40}
	bodyColor   = [3]int{50, 50, 50}
	lineColor   = [3]int{200, 200, 200}
	barColor    = [3]int{46, 139, 87}
)

// WritePDF renders r as an A4 report.
func WritePDF(w io.Writer, r Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Waste recovery report", true)
	pdf.AddPage()

	pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, "  Waste recovery report", "", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(bodyColor[0], bodyColor[1], bodyColor[2])
	pdf.CellFormat(0, 7, "  Generated "+r.Generated.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	section := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(0, 0, 0)
		pdf.Cell(0, 8, title)
		pdf.Ln(7)
		pdf.SetDrawColor(lineColor[0], lineColor[1], lineColor[2])
		pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+190, pdf.GetY())
		pdf.Ln(4)
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(bodyColor[0], bodyColor[1], bodyColor[2])
	}
	row := func(widths []float64, cells []string, bold bool) {
		style := ""
		border := ""
		if bold {
			style, border = "B", "B"
		}
		pdf.SetFont("Arial", style, 9)
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, tr(c), border, 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if d := r.Distribution; d != nil {
		section("Recovery rate distribution")
		maxCount := 0
		for _, b := range d.ChartData {
			maxCount = max(maxCount, b.Count)
		}
		for _, b := range d.ChartData {
			pdf.CellFormat(25, 6, b.Range, "", 0, "L", false, 0, "")
			pdf.CellFormat(15, 6, strconv.Itoa(b.Count), "", 0, "R", false, 0, "")
			if maxCount > 0 && b.Count > 0 {
				pdf.SetFillColor(barColor[0], barColor[1], barColor[2])
				pdf.Rect(pdf.GetX()+4, pdf.GetY()+1, 120*float64(b.Count)/float64(maxCount), 4, "F")
			}
			pdf.Ln(-1)
		}
		if d.OutOfRange.Count > 0 {
			pdf.CellFormat(0, 6, fmt.Sprintf("%d companies reported a rate outside 0-100%%", d.OutOfRange.Count), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)

		s := d.Statistics
		widths := []float64{60, 40}
		row(widths, []string{"Statistic", "Value"}, true)
		for _, line := range statisticsTable(s)[1:] {
			row(widths, line, false)
		}
		pdf.Ln(4)

		if len(d.SectorBreakdown) > 0 {
			widths := []float64{70, 25, 30, 30, 30}
			row(widths, []string{"Sector", "Companies", "Avg", "Min", "Max"}, true)
			for _, line := range sectorTable(d.SectorBreakdown)[1:] {
				row(widths, line, false)
			}
		}
		pdf.Ln(8)
	}

	if t := r.Trends; t != nil {
		section("Recovery trends")
		widths := []float64{20, 30, 30, 30, 25, 25, 25}
		row(widths, []string{"Period", "Generated", "Recovered", "Disposed", "Recovery", "Recycling", "Disposal"}, true)
		for _, p := range t.Points {
			row(widths, []string{
				strconv.Itoa(p.Period),
				qty(p.TotalGenerated),
				qty(p.TotalRecovered),
				qty(p.TotalDisposed),
				pct(p.RecoveryRate),
				pct(p.RecyclingRate),
				pct(p.DisposalRate),
			}, false)
		}
		pdf.Ln(4)
		s := t.Summary
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(190, 5, tr(fmt.Sprintf(
			"%d periods, average recovery rate %s, trend %s. Latest period %d at %s (source: %s).",
			s.TotalPeriods, pct(s.AvgRecoveryRate), s.TrendDirection, s.LatestPeriod, pct(s.LatestRecoveryRate), s.DataSource,
		)), "", "L", false)
	}

	if r.Distribution == nil && r.Trends == nil {
		section("No data")
		pdf.MultiCell(190, 5, "No waste-stream data was found for the selected periods.", "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
