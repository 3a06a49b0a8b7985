package valuation

import (
	"bytes"
	"testing"
	"time"

	"github.com/bobmcallan/folium/internal/models"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestRenderSeriesChartValidPNG(t *testing.T) {
	series := &models.Series{
		Window:    models.Window6M,
		Reference: "EUR",
		Points: []models.SeriesPoint{
			{Date: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Value: 100000},
			{Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Value: 105000},
			{Date: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), Value: 110000},
		},
		InitialValue: 100000,
		FinalValue:   110000,
		Performance:  models.NewPerformance(100000, 110000),
	}

	pngBytes, err := RenderSeriesChart(series)
	if err != nil {
		t.Fatalf("RenderSeriesChart error: %v", err)
	}
	if !bytes.HasPrefix(pngBytes, pngHeader) {
		t.Fatal("output is not a PNG")
	}
	if len(pngBytes) < 1000 {
		t.Errorf("PNG suspiciously small: %d bytes", len(pngBytes))
	}
}

func TestRenderSeriesChartFlat(t *testing.T) {
	series := &models.Series{
		Window:    models.Window1M,
		Reference: "EUR",
		Points: []models.SeriesPoint{
			{Date: time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC), Value: 5000},
			{Date: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), Value: 5000},
		},
		InitialValue: 5000,
		FinalValue:   5000,
		Performance:  models.NewPerformance(5000, 5000),
		Flat:         true,
	}

	pngBytes, err := RenderSeriesChart(series)
	if err != nil {
		t.Fatalf("RenderSeriesChart error for flat series: %v", err)
	}
	if !bytes.HasPrefix(pngBytes, pngHeader) {
		t.Fatal("output is not a PNG")
	}
}

func TestRenderSeriesChartTooFewPoints(t *testing.T) {
	if _, err := RenderSeriesChart(&models.Series{Points: []models.SeriesPoint{{Value: 1}}}); err == nil {
		t.Fatal("expected error for single data point, got nil")
	}
	if _, err := RenderSeriesChart(nil); err == nil {
		t.Fatal("expected error for nil series, got nil")
	}
}

func TestRenderAllocationChartValidPNG(t *testing.T) {
	slices := []models.AllocationSlice{
		{Key: "etf", Label: "ETFs", Color: models.CategoryETF.Color(), Value: 600, Weight: 60},
		{Key: "stock", Label: "Stocks", Color: models.CategoryStock.Color(), Value: 400, Weight: 40},
	}

	pngBytes, err := RenderAllocationChart(slices)
	if err != nil {
		t.Fatalf("RenderAllocationChart error: %v", err)
	}
	if !bytes.HasPrefix(pngBytes, pngHeader) {
		t.Fatal("output is not a PNG")
	}
}

func TestRenderAllocationChartEmpty(t *testing.T) {
	if _, err := RenderAllocationChart(nil); err == nil {
		t.Fatal("expected error for empty allocation")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{950, "950 EUR"},
		{25000, "25k EUR"},
		{2500000, "2.5M EUR"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.v, "EUR"); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
