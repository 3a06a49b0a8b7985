package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidWindow is returned for an unknown history window.
	ErrInvalidWindow = errors.New("invalid window")
	// ErrInvalidGroupBy is returned for an unknown allocation grouping.
	ErrInvalidGroupBy = errors.New("invalid group by")
	// ErrInvalidCurrency is returned for a reference currency that is not a 3-letter code.
	ErrInvalidCurrency = errors.New("invalid currency")
)

// Window selects the trailing range of a historical series.
type Window string

const (
	Window1M  Window = "1M"
	Window6M  Window = "6M"
	Window1Y  Window = "1Y"
	WindowYTD Window = "YTD"
	WindowMax Window = "MAX"
)

// ParseWindow resolves a window name, case-insensitively.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToUpper(strings.TrimSpace(s)))
	switch w {
	case Window1M, Window6M, Window1Y, WindowYTD, WindowMax:
		return w, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWindow, s)
}

// GroupBy selects the allocation breakdown key.
type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupByHolding  GroupBy = "holding"
)

// ParseGroupBy resolves a grouping name, case-insensitively.
func ParseGroupBy(s string) (GroupBy, error) {
	g := GroupBy(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GroupByCategory, GroupByHolding:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGroupBy, s)
}

// Trend classifies a performance figure for display.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// FlatBandPct is the half-width, in percent, of the band around zero treated as flat.
const FlatBandPct = 0.01

// ClassifyTrend maps a percent figure to a trend using the flat band.
func ClassifyTrend(pct float64) Trend {
	switch {
	case pct >= FlatBandPct:
		return TrendUp
	case pct <= -FlatBandPct:
		return TrendDown
	default:
		return TrendFlat
	}
}

// Performance is the change between an initial and a current value.
type Performance struct {
	Initial        float64 `json:"initial"`
	Current        float64 `json:"current"`
	AbsoluteChange float64 `json:"absolute_change"`
	Percent        float64 `json:"percent"` // percentage scaled: 20 = 20%
	Trend          Trend   `json:"trend"`
}

// NewPerformance derives the change from initial to current.
// A zero initial value yields 0% rather than a division error.
func NewPerformance(initial, current float64) Performance {
	pct := 0.0
	if initial != 0 {
		pct = (current - initial) / initial * 100
	}
	return Performance{
		Initial:        initial,
		Current:        current,
		AbsoluteChange: current - initial,
		Percent:        pct,
		Trend:          ClassifyTrend(pct),
	}
}

// HoldingPerformance is one holding's line in a snapshot.
type HoldingPerformance struct {
	HoldingID      string      `json:"holding_id"`
	Name           string      `json:"name"`
	Ticker         string      `json:"ticker,omitempty"`
	Category       Category    `json:"category"`
	Currency       string      `json:"currency"`
	Performance    Performance `json:"performance"` // in the holding's own currency
	Rate           float64     `json:"rate,omitempty"`
	ReferenceValue float64     `json:"reference_value"`
	Converted      bool        `json:"converted"`              // false when no exchange rate was available
	DailyChange    *float64    `json:"daily_change,omitempty"` // per unit
	DailyChangePct *float64    `json:"daily_change_percent,omitempty"`
	PositionChange *float64    `json:"position_daily_change,omitempty"` // per-unit change times quantity
}

// Snapshot is the present-moment valuation of a set of holdings.
type Snapshot struct {
	Reference         string               `json:"reference_currency"`
	TotalValue        float64              `json:"total_value"`
	TotalInitialValue float64              `json:"total_initial_value"`
	Performance       Performance          `json:"performance"`
	Holdings          []HoldingPerformance `json:"holdings"`
	Excluded          []string             `json:"excluded,omitempty"` // holding IDs without a resolvable rate
	ComputedAt        time.Time            `json:"computed_at"`
}

// SeriesPoint is the portfolio value on one calendar day.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a reconstructed portfolio value history.
type Series struct {
	Window       Window        `json:"window"`
	Reference    string        `json:"reference_currency"`
	Points       []SeriesPoint `json:"points"`
	InitialValue float64       `json:"initial_value"`
	FinalValue   float64       `json:"final_value"`
	Performance  Performance   `json:"performance"`
	Flat         bool          `json:"flat"` // true when built from the current snapshot instead of market history
}

// PerformanceAt re-derives performance for a hovered point: the first point
// stays the initial value and point i becomes the current value.
func (s *Series) PerformanceAt(i int) (Performance, bool) {
	if s == nil || i < 0 || i >= len(s.Points) {
		return Performance{}, false
	}
	return NewPerformance(s.Points[0].Value, s.Points[i].Value), true
}

// AllocationSlice is one group of an allocation breakdown.
type AllocationSlice struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Color  string  `json:"color"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"` // percent of the allocation total
}

// Valuation bundles the outputs of a single computation pass.
type Valuation struct {
	Snapshot   *Snapshot         `json:"snapshot"`
	Series     *Series           `json:"series"`
	Allocation []AllocationSlice `json:"allocation"`
}
