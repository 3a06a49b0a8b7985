package valuation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/folium/internal/models"
)

// HistoryLookback is how far before the window start history is fetched, so
// the first days of the window can be forward-filled from an earlier close.
const HistoryLookback = 7 * 24 * time.Hour

// WindowStart returns the first calendar day of window relative to today.
// MAX starts at the earliest purchase date, or yesterday when none is set.
func WindowStart(window models.Window, today time.Time, holdings []models.Holding) time.Time {
	today = models.DayOf(today)
	switch window {
	case models.Window1M:
		return today.AddDate(0, -1, 0)
	case models.Window6M:
		return today.AddDate(0, -6, 0)
	case models.Window1Y:
		return today.AddDate(-1, 0, 0)
	case models.WindowYTD:
		return time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	var earliest time.Time
	for _, h := range holdings {
		if h.PurchaseDate.IsZero() {
			continue
		}
		d := models.DayOf(h.PurchaseDate)
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	if earliest.IsZero() || earliest.After(today) {
		return today.AddDate(0, 0, -1)
	}
	return earliest
}

// series builds the value history for window using a resolved rate table.
func (e *Engine) series(ctx context.Context, holdings []models.Holding, window models.Window, rates RateTable) (*models.Series, error) {
	out := &models.Series{
		Window:    window,
		Reference: rates.Reference(),
		Points:    []models.SeriesPoint{},
	}
	if len(holdings) == 0 {
		out.Performance = models.NewPerformance(0, 0)
		return out, nil
	}

	now := e.now()
	today := models.DayOf(now)
	start := WindowStart(window, today, holdings)

	histories, err := e.fetchHistories(ctx, holdings, start.Add(-HistoryLookback))
	if err != nil {
		return nil, err
	}

	if hasHistory(histories) {
		out.Points = reconstruct(holdings, histories, rates, start, today)
	}
	// No history, or no day in the window with a non-zero total
	if len(out.Points) == 0 {
		total := computeSnapshot(holdings, rates, now).TotalValue
		out.Points = []models.SeriesPoint{
			{Date: today.AddDate(0, 0, -1), Value: total},
			{Date: today, Value: total},
		}
		out.Flat = true
		e.logger.Debug().Str("window", string(window)).Msg("No reconstructable history, using flat series from current values")
	}

	if n := len(out.Points); n > 0 {
		out.InitialValue = out.Points[0].Value
		out.FinalValue = out.Points[n-1].Value
	}
	out.Performance = models.NewPerformance(out.InitialValue, out.FinalValue)
	return out, nil
}

// uniqueTickers returns the distinct tickers of security holdings, sorted.
func uniqueTickers(holdings []models.Holding) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range holdings {
		t := strings.TrimSpace(h.Ticker)
		if !h.IsSecurity() || t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// fetchHistories loads daily closes for every distinct ticker concurrently.
func (e *Engine) fetchHistories(ctx context.Context, holdings []models.Holding, from time.Time) (map[string][]models.PricePoint, error) {
	tickers := uniqueTickers(holdings)
	out := make(map[string][]models.PricePoint, len(tickers))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for _, t := range tickers {
		t := t
		g.Go(func() error {
			points := e.gateway.GetHistoricalData(gctx, t, from)
			mu.Lock()
			out[t] = points
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func hasHistory(histories map[string][]models.PricePoint) bool {
	for _, points := range histories {
		if len(points) > 0 {
			return true
		}
	}
	return false
}

// reconstruct sums each holding's converted value for every calendar day in
// [start, end]. Days totalling exactly zero are dropped.
func reconstruct(holdings []models.Holding, histories map[string][]models.PricePoint, rates RateTable, start, end time.Time) []models.SeriesPoint {
	dates := calendarDates(start, end)
	points := make([]models.SeriesPoint, 0, len(dates))

	for _, d := range dates {
		total := 0.0
		for _, h := range holdings {
			if !h.PurchaseDate.IsZero() && models.DayOf(h.PurchaseDate).After(d) {
				continue
			}
			v, ok := rates.Convert(holdingValueOn(h, histories, d), h.Currency)
			if !ok {
				continue
			}
			total += v
		}
		if total == 0 {
			continue
		}
		points = append(points, models.SeriesPoint{Date: d, Value: total})
	}
	return points
}

// holdingValueOn values a holding on day d in its own currency. Securities use
// the close on d, else the latest earlier close, else the purchase price.
func holdingValueOn(h models.Holding, histories map[string][]models.PricePoint, d time.Time) float64 {
	if !h.IsSecurity() {
		return h.InitialValue
	}
	if h.Quantity <= 0 {
		return 0
	}
	price, found := closeAsOf(histories[strings.TrimSpace(h.Ticker)], d)
	if !found {
		price = h.PurchasePrice
	}
	return price * h.Quantity
}

// closeAsOf returns the close on or before asOf from ascending points.
func closeAsOf(points []models.PricePoint, asOf time.Time) (float64, bool) {
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].Date.After(asOf)
	})
	if idx == 0 {
		return 0, false
	}
	return points[idx-1].Close, true
}

// calendarDates produces one date per day from start to end inclusive.
func calendarDates(start, end time.Time) []time.Time {
	start = models.DayOf(start)
	end = models.DayOf(end)
	if end.Before(start) {
		return nil
	}

	dates := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
