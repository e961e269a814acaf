package analytics

import (
	"errors"
	"fmt"
	"math"

	"wastemetrics/internal/domain"
)

// Bin is one recovery-rate band. Bins are half-open [Min, Max) except the
// last, which also includes Max.
type Bin struct {
	Label string  `yaml:"label" json:"range"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
}

// DefaultRecoveryBins are the dashboard's recovery-rate bands.
var DefaultRecoveryBins = []Bin{
	{Label: "0-20%", Min: 0, Max: 20},
	{Label: "20-40%", Min: 20, Max: 40},
	{Label: "40-60%", Min: 40, Max: 60},
	{Label: "60-80%", Min: 60, Max: 80},
	{Label: "80-100%", Min: 80, Max: 100},
}

// ErrInvalidBins is returned by NewBinner for an unusable bin layout.
var ErrInvalidBins = errors.New("invalid histogram bins")

// BinResult is a bin with the companies that fell into it.
type BinResult struct {
	Range     string                         `json:"range"`
	Min       float64                        `json:"min"`
	Max       float64                        `json:"max"`
	Count     int                            `json:"count"`
	Companies []domain.CompanyMetricSnapshot `json:"companies"`
}

// Histogram is the outcome of assigning snapshots to bins. Rates outside the
// covered range land in OutOfRange.
type Histogram struct {
	Bins       []BinResult `json:"bins"`
	OutOfRange BinResult   `json:"outOfRange"`
}

// Total is the number of snapshots assigned, in range or not.
func (h Histogram) Total() int {
	n := h.OutOfRange.Count
	for _, b := range h.Bins {
		n += b.Count
	}
	return n
}

// Binner assigns recovery rates to a fixed set of contiguous bins.
type Binner struct {
	bins []Bin
}

// NewBinner validates that bins are ordered, contiguous and span 0 to 100.
func NewBinner(bins []Bin) (*Binner, error) {
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: no bins", ErrInvalidBins)
	}
	if bins[0].Min != 0 || bins[len(bins)-1].Max != 100 {
		return nil, fmt.Errorf("%w: bins must span 0 to 100", ErrInvalidBins)
	}
	for i, b := range bins {
		if b.Label == "" {
			return nil, fmt.Errorf("%w: bin %d has no label", ErrInvalidBins, i)
		}
		if b.Min >= b.Max {
			return nil, fmt.Errorf("%w: bin %q has min >= max", ErrInvalidBins, b.Label)
		}
		if i > 0 && b.Min != bins[i-1].Max {
			return nil, fmt.Errorf("%w: bin %q does not start where %q ends", ErrInvalidBins, b.Label, bins[i-1].Label)
		}
	}
	return &Binner{bins: append([]Bin(nil), bins...)}, nil
}

// Bins returns a copy of the configured bins.
func (b *Binner) Bins() []Bin {
	return append([]Bin(nil), b.bins...)
}

// Assign places each snapshot in exactly one bin or in OutOfRange.
func (b *Binner) Assign(snapshots []domain.CompanyMetricSnapshot) Histogram {
	h := Histogram{
		Bins:       make([]BinResult, len(b.bins)),
		OutOfRange: BinResult{Range: "out of range", Companies: []domain.CompanyMetricSnapshot{}},
	}
	for i, bin := range b.bins {
		h.Bins[i] = BinResult{Range: bin.Label, Min: bin.Min, Max: bin.Max, Companies: []domain.CompanyMetricSnapshot{}}
	}
	for _, s := range snapshots {
		dst := &h.OutOfRange
		if i := b.index(s.RecoveryRate); i >= 0 {
			dst = &h.Bins[i]
		}
		dst.Count++
		dst.Companies = append(dst.Companies, s)
	}
	return h
}

func (b *Binner) index(rate float64) int {
	if math.IsNaN(rate) {
		return -1
	}
	last := len(b.bins) - 1
	for i, bin := range b.bins {
		if rate >= bin.Min && (rate < bin.Max || (i == last && rate == bin.Max)) {
			return i
		}
	}
	return -1
}
