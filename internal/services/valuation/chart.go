package valuation

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/folium/internal/models"
)

var trendColors = map[models.Trend]string{
	models.TrendUp:   "16a34a", // green-600
	models.TrendDown: "dc2626", // red-600
	models.TrendFlat: "2563eb", // blue-600
}

// RenderSeriesChart renders a PNG line chart of a value history, coloured by
// the series trend. Returns raw PNG bytes.
func RenderSeriesChart(series *models.Series) ([]byte, error) {
	if series == nil || len(series.Points) < 2 {
		n := 0
		if series != nil {
			n = len(series.Points)
		}
		return nil, fmt.Errorf("need at least 2 data points, got %d", n)
	}

	xValues := make([]time.Time, len(series.Points))
	yValues := make([]float64, len(series.Points))
	for i, p := range series.Points {
		xValues[i] = p.Date
		yValues[i] = p.Value
	}

	valueSeries := chart.TimeSeries{
		Name: "Portfolio Value",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex(trendColors[series.Performance.Trend]),
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	initialSeries := chart.TimeSeries{
		Name: "Start Value",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: []time.Time{xValues[0], xValues[len(xValues)-1]},
		YValues: []float64{series.InitialValue, series.InitialValue},
	}

	dateFormat := "Jan 06"
	if xValues[len(xValues)-1].Sub(xValues[0]) <= 62*24*time.Hour {
		dateFormat = "02 Jan"
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Portfolio Value (%s, %s)", series.Window, series.Reference),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(dateFormat)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return formatAmount(f, series.Reference)
				}
				return ""
			},
		},
		Series: []chart.Series{
			valueSeries,
			initialSeries,
		},
	}

	// go-chart rejects a zero-height y range
	if lo, hi := valueBounds(yValues, series.InitialValue); lo == hi {
		pad := math.Abs(lo) * 0.1
		if pad == 0 {
			pad = 1
		}
		graph.YAxis.Range = &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func valueBounds(values []float64, extra float64) (lo, hi float64) {
	lo, hi = extra, extra
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// RenderAllocationChart renders a PNG pie chart of allocation slices using
// each slice's colour. Returns raw PNG bytes.
func RenderAllocationChart(slices []models.AllocationSlice) ([]byte, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("no allocation to render")
	}

	values := make([]chart.Value, 0, len(slices))
	for _, s := range slices {
		values = append(values, chart.Value{
			Value: s.Value,
			Label: fmt.Sprintf("%s %.1f%%", s.Label, s.Weight),
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(s.Color),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}

	pie := chart.PieChart{
		Title:  "Allocation",
		Width:  512,
		Height: 512,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAmount(v float64, currency string) string {
	switch {
	case v >= 1_000_000 || v <= -1_000_000:
		return fmt.Sprintf("%.1fM %s", v/1_000_000, currency)
	case v >= 10_000 || v <= -10_000:
		return fmt.Sprintf("%.0fk %s", v/1000, currency)
	}
	return fmt.Sprintf("%.0f %s", v, currency)
}
