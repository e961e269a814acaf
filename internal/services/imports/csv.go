package imports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"wastemetrics/internal/domain"
)

// ErrInvalidCSV is returned when the payload cannot be read as a waste-stream
// CSV at all, for example when a required column is missing.
var ErrInvalidCSV = errors.New("invalid csv")

// maxRowErrors caps the row errors kept on an import. Rejected rows beyond
// the cap are still counted.
const maxRowErrors = 100

const (
	minPeriod = 1900
	maxPeriod = 2100
)

var requiredColumns = []string{"company_id", "reporting_period", "metric", "value"}

var utf8BOM = []byte("\xef\xbb\xbf")

// Row is a parsed record with the CSV line it came from.
type Row struct {
	Line   int
	Record domain.WasteStreamRecord
}

// ParseResult holds the accepted rows and the reasons rows were rejected.
type ParseResult struct {
	Rows     []Row
	Rejected int
	Errors   []domain.RowError
}

func (r *ParseResult) reject(line int, format string, args ...any) {
	r.Rejected++
	if len(r.Errors) < maxRowErrors {
		r.Errors = append(r.Errors, domain.RowError{Line: line, Reason: fmt.Sprintf(format, args...)})
	}
}

// Records returns the accepted records in file order.
func (r *ParseResult) Records() []domain.WasteStreamRecord {
	out := make([]domain.WasteStreamRecord, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Record
	}
	return out
}

// Parse reads a waste-stream CSV. The header names the columns in any order;
// company_id, reporting_period, metric and value are required. Invalid rows
// are rejected individually, header problems fail the whole payload.
func Parse(data []byte) (*ParseResult, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	res := &ParseResult{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		line, _ := r.FieldPos(0)
		if blank(rec) {
			continue
		}
		record, reason := parseRow(rec, cols)
		if reason != "" {
			res.reject(line, "%s", reason)
			continue
		}
		res.Rows = append(res.Rows, Row{Line: line, Record: record})
	}
	return res, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
		if _, dup := cols[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidCSV, name)
		}
		cols[name] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrInvalidCSV, strings.Join(missing, ", "))
	}
	return cols, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(rec []string, cols map[string]int) (domain.WasteStreamRecord, string) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	out := domain.WasteStreamRecord{
		CompanyID: get("company_id"),
		Metric:    get("metric"),
		Unit:      get("unit"),
	}
	if out.CompanyID == "" {
		return out, "company_id is required"
	}
	if out.Metric == "" {
		return out, "metric is required"
	}

	period, err := strconv.Atoi(get("reporting_period"))
	if err != nil {
		return out, fmt.Sprintf("reporting_period %q is not a year", get("reporting_period"))
	}
	if period < minPeriod || period > maxPeriod {
		return out, fmt.Sprintf("reporting_period %d out of range", period)
	}
	out.ReportingPeriod = period

	if raw := get("value"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return out, fmt.Sprintf("value %q is not a number", raw)
		}
		if v < 0 {
			return out, fmt.Sprintf("value %v is negative", v)
		}
		out.Value = &v
	}

	// Unrecognised treatment methods are kept verbatim so aggregation can
	// report them as unclassified.
	if raw := get("treatment_method"); raw != "" {
		if t, err := domain.ParseTreatment(raw); err == nil {
			out.TreatmentMethod = string(t)
		} else {
			out.TreatmentMethod = raw
		}
	}
	if raw := get("hazardousness"); raw != "" {
		h, err := domain.ParseHazard(raw)
		if err != nil {
			return out, err.Error()
		}
		out.Hazardousness = string(h)
	}
	return out, ""
}
