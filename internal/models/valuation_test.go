package models

import (
	"errors"
	"math"
	"testing"
)

func TestNewPerformance(t *testing.T) {
	tests := []struct {
		name      string
		initial   float64
		current   float64
		wantPct   float64
		wantAbs   float64
		wantTrend Trend
	}{
		{"gain", 1000, 1200, 20, 200, TrendUp},
		{"loss", 1000, 900, -10, -100, TrendDown},
		{"unchanged", 500, 500, 0, 0, TrendFlat},
		{"zero initial", 0, 300, 0, 300, TrendFlat},
		{"both zero", 0, 0, 0, 0, TrendFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPerformance(tt.initial, tt.current)
			if math.Abs(p.Percent-tt.wantPct) > 1e-9 {
				t.Errorf("Percent = %v, want %v", p.Percent, tt.wantPct)
			}
			if p.AbsoluteChange != tt.wantAbs {
				t.Errorf("AbsoluteChange = %v, want %v", p.AbsoluteChange, tt.wantAbs)
			}
			if p.Trend != tt.wantTrend {
				t.Errorf("Trend = %v, want %v", p.Trend, tt.wantTrend)
			}
		})
	}
}

func TestClassifyTrend_FlatBand(t *testing.T) {
	tests := []struct {
		pct  float64
		want Trend
	}{
		{0.005, TrendFlat},
		{-0.005, TrendFlat},
		{0.01, TrendUp},
		{-0.01, TrendDown},
		{0.0099, TrendFlat},
		{3, TrendUp},
		{-3, TrendDown},
	}
	for _, tt := range tests {
		if got := ClassifyTrend(tt.pct); got != tt.want {
			t.Errorf("ClassifyTrend(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}

func TestSeriesPerformanceAt(t *testing.T) {
	s := &Series{Points: []SeriesPoint{{Value: 100}, {Value: 80}, {Value: 150}}}

	p, ok := s.PerformanceAt(2)
	if !ok {
		t.Fatal("expected point 2 to resolve")
	}
	if p.Initial != 100 || p.Current != 150 || p.Percent != 50 {
		t.Errorf("unexpected performance at 2: %+v", p)
	}

	p, _ = s.PerformanceAt(1)
	if p.Trend != TrendDown {
		t.Errorf("expected down trend at 1, got %v", p.Trend)
	}

	if _, ok := s.PerformanceAt(3); ok {
		t.Error("index past the end should not resolve")
	}
	if _, ok := s.PerformanceAt(-1); ok {
		t.Error("negative index should not resolve")
	}
	var nilSeries *Series
	if _, ok := nilSeries.PerformanceAt(0); ok {
		t.Error("nil series should not resolve")
	}
}

func TestParseWindow(t *testing.T) {
	for in, want := range map[string]Window{"1m": Window1M, " 6M ": Window6M, "ytd": WindowYTD, "max": WindowMax, "1Y": Window1Y} {
		got, err := ParseWindow(in)
		if err != nil || got != want {
			t.Errorf("ParseWindow(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseWindow("2W"); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestParseGroupBy(t *testing.T) {
	if g, err := ParseGroupBy("Category"); err != nil || g != GroupByCategory {
		t.Errorf("ParseGroupBy(Category) = %v, %v", g, err)
	}
	if g, err := ParseGroupBy("holding"); err != nil || g != GroupByHolding {
		t.Errorf("ParseGroupBy(holding) = %v, %v", g, err)
	}
	if _, err := ParseGroupBy("sector"); !errors.Is(err, ErrInvalidGroupBy) {
		t.Errorf("expected ErrInvalidGroupBy, got %v", err)
	}
}
