package valuation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/models"
)

// --- Mocks ---

type mockGateway struct {
	mu        sync.Mutex
	rates     map[string]float64 // keyed by FROM
	histories map[string][]models.PricePoint
	rateCalls map[string]int
	histCalls map[string]int
	histFrom  time.Time
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		rates:     map[string]float64{},
		histories: map[string][]models.PricePoint{},
		rateCalls: map[string]int{},
		histCalls: map[string]int{},
	}
}

func (m *mockGateway) GetQuote(_ context.Context, _ string) *models.Quote { return nil }

func (m *mockGateway) GetHistoricalData(_ context.Context, ticker string, start time.Time) []models.PricePoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histCalls[ticker]++
	m.histFrom = start
	return m.histories[ticker]
}

func (m *mockGateway) GetExchangeRate(_ context.Context, from, to string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateCalls[from]++
	if from == to {
		return 1, true
	}
	r, ok := m.rates[from]
	return r, ok
}

func (m *mockGateway) SearchSecurities(_ context.Context, _ string) []models.SearchResult { return nil }

var testNow = time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)

func testToday() time.Time { return models.DayOf(testNow) }

func newTestEngine(gw *mockGateway) *Engine {
	return NewEngine(gw, common.NewSilentLogger(), WithClock(func() time.Time { return testNow }), WithMaxConcurrency(4))
}

func day(offset int) time.Time {
	return testToday().AddDate(0, 0, offset)
}

func security(id, ticker, currency string, qty, price, current float64, purchased time.Time) models.Holding {
	return models.Holding{
		ID:            id,
		Name:          ticker,
		Category:      models.CategoryStock,
		Ticker:        ticker,
		Currency:      currency,
		Quantity:      qty,
		PurchasePrice: price,
		PurchaseDate:  purchased,
		InitialValue:  qty * price,
		CurrentValue:  current,
	}
}

func cash(id, currency string, balance float64, set time.Time) models.Holding {
	return models.Holding{
		ID:           id,
		Name:         "Bank " + id,
		Category:     models.CategoryCashAccount,
		Currency:     currency,
		PurchaseDate: set,
		InitialValue: balance,
		CurrentValue: balance,
	}
}

func near(t *testing.T, want, got float64, msg string) {
	t.Helper()
	if math.Abs(want-got) > 1e-6 {
		t.Errorf("%s: want %v, got %v", msg, want, got)
	}
}

// --- Snapshot ---

func TestComputeSnapshot_ForeignCurrency(t *testing.T) {
	gw := newMockGateway()
	gw.rates["USD"] = 0.9
	e := newTestEngine(gw)

	h := security("h1", "AAPL", "USD", 10, 100, 1200, day(-30))
	snap, err := e.ComputeSnapshot(context.Background(), []models.Holding{h}, "EUR")
	require.NoError(t, err)

	near(t, 1080, snap.TotalValue, "total")
	near(t, 900, snap.TotalInitialValue, "total initial")
	near(t, 20, snap.Performance.Percent, "portfolio percent")
	assert.Equal(t, models.TrendUp, snap.Performance.Trend)
	require.Len(t, snap.Holdings, 1)
	near(t, 20, snap.Holdings[0].Performance.Percent, "holding percent")
	near(t, 1080, snap.Holdings[0].ReferenceValue, "holding reference value")
	assert.True(t, snap.Holdings[0].Converted)
	assert.Equal(t, "EUR", snap.Reference)
	assert.Empty(t, snap.Excluded)
}

func TestComputeSnapshot_PositionDailyChange(t *testing.T) {
	e := newTestEngine(newMockGateway())

	h := security("h1", "AAPL", "EUR", 10, 100, 1200, day(-30))
	h.DailyChange = models.Float64Ptr(1.5)
	snap, err := e.ComputeSnapshot(context.Background(), []models.Holding{h, cash("c1", "EUR", 50, day(-5))}, "EUR")
	require.NoError(t, err)

	require.Len(t, snap.Holdings, 2)
	require.NotNil(t, snap.Holdings[0].DailyChange)
	near(t, 1.5, *snap.Holdings[0].DailyChange, "per-unit change kept")
	require.NotNil(t, snap.Holdings[0].PositionChange)
	near(t, 15, *snap.Holdings[0].PositionChange, "position change")
	assert.Nil(t, snap.Holdings[1].PositionChange)
}

func TestComputeSnapshot_UnresolvableCurrencyExcluded(t *testing.T) {
	gw := newMockGateway()
	e := newTestEngine(gw)

	holdings := []models.Holding{
		cash("c1", "EUR", 1000, day(-10)),
		cash("c2", "XYZ", 5000, day(-10)),
	}
	snap, err := e.ComputeSnapshot(context.Background(), holdings, "EUR")
	require.NoError(t, err)

	near(t, 1000, snap.TotalValue, "total excludes XYZ")
	assert.Equal(t, []string{"c2"}, snap.Excluded)
	require.Len(t, snap.Holdings, 2)
	assert.False(t, snap.Holdings[1].Converted)
	assert.Zero(t, snap.Holdings[1].ReferenceValue)
}

func TestComputeSnapshot_Empty(t *testing.T) {
	e := newTestEngine(newMockGateway())

	snap, err := e.ComputeSnapshot(context.Background(), nil, "EUR")
	require.NoError(t, err)
	assert.Zero(t, snap.TotalValue)
	assert.Zero(t, snap.Performance.Percent)
	assert.Equal(t, models.TrendFlat, snap.Performance.Trend)
	assert.Empty(t, snap.Holdings)
}

func TestComputeSnapshot_InvalidReference(t *testing.T) {
	e := newTestEngine(newMockGateway())

	_, err := e.ComputeSnapshot(context.Background(), nil, "euro")
	assert.True(t, errors.Is(err, models.ErrInvalidCurrency))
}

func TestComputeSnapshot_RateFetchedOncePerCurrency(t *testing.T) {
	gw := newMockGateway()
	gw.rates["USD"] = 0.9
	e := newTestEngine(gw)

	holdings := []models.Holding{
		security("h1", "AAPL", "USD", 1, 100, 100, day(-5)),
		security("h2", "MSFT", "usd", 1, 100, 100, day(-5)),
		cash("c1", "EUR", 100, day(-5)),
	}
	_, err := e.ComputeSnapshot(context.Background(), holdings, "EUR")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.rateCalls["USD"])
	assert.Zero(t, gw.rateCalls["EUR"], "reference currency needs no lookup")
}

// --- Historical series ---

func TestComputeHistoricalSeries_CashOnlyIsFlat(t *testing.T) {
	gw := newMockGateway()
	e := newTestEngine(gw)

	series, err := e.ComputeHistoricalSeries(context.Background(), []models.Holding{cash("c1", "EUR", 5000, day(-100))}, models.Window6M, "EUR")
	require.NoError(t, err)

	require.Len(t, series.Points, 2)
	assert.True(t, series.Flat)
	assert.Equal(t, day(-1), series.Points[0].Date)
	assert.Equal(t, day(0), series.Points[1].Date)
	near(t, 5000, series.Points[0].Value, "yesterday")
	near(t, 5000, series.Points[1].Value, "today")
	assert.Equal(t, models.TrendFlat, series.Performance.Trend)
}

func TestComputeHistoricalSeries_AllHistoryFailedIsFlat(t *testing.T) {
	gw := newMockGateway()
	e := newTestEngine(gw)

	h := security("h1", "AAPL", "EUR", 2, 50, 130, day(-20))
	series, err := e.ComputeHistoricalSeries(context.Background(), []models.Holding{h}, models.Window1M, "EUR")
	require.NoError(t, err)

	require.Len(t, series.Points, 2)
	assert.True(t, series.Flat)
	near(t, 130, series.Points[1].Value, "flat value from current")
}

func TestComputeHistoricalSeries_Empty(t *testing.T) {
	e := newTestEngine(newMockGateway())

	series, err := e.ComputeHistoricalSeries(context.Background(), nil, models.Window1Y, "EUR")
	require.NoError(t, err)
	assert.Empty(t, series.Points)
	assert.Zero(t, series.InitialValue)
	assert.Zero(t, series.FinalValue)
}

func TestComputeHistoricalSeries_InvalidWindow(t *testing.T) {
	e := newTestEngine(newMockGateway())

	_, err := e.ComputeHistoricalSeries(context.Background(), nil, models.Window("2W"), "EUR")
	assert.True(t, errors.Is(err, models.ErrInvalidWindow))
}

func TestComputeHistoricalSeries_ForwardFill(t *testing.T) {
	gw := newMockGateway()
	// closes on day 1 and day 5 of the window only
	start := day(-10)
	gw.histories["AAPL"] = []models.PricePoint{
		{Date: start.AddDate(0, 0, 1), Close: 10},
		{Date: start.AddDate(0, 0, 5), Close: 20},
	}
	e := newTestEngine(gw)

	h := security("h1", "AAPL", "EUR", 1, 8, 20, start)
	series, err := e.ComputeHistoricalSeries(context.Background(), []models.Holding{h}, models.WindowMax, "EUR")
	require.NoError(t, err)
	require.False(t, series.Flat)

	values := map[time.Time]float64{}
	for _, p := range series.Points {
		values[p.Date] = p.Value
	}
	near(t, 8, values[start], "before any close uses purchase price")
	near(t, 10, values[start.AddDate(0, 0, 1)], "day 1")
	near(t, 10, values[start.AddDate(0, 0, 3)], "day 3 forward-filled from day 1")
	near(t, 20, values[start.AddDate(0, 0, 5)], "day 5")
	near(t, 20, values[day(0)], "today forward-filled from day 5")
}

func TestComputeHistoricalSeries_SortedNoDuplicates(t *testing.T) {
	gw := newMockGateway()
	gw.rates["USD"] = 0.5
	gw.histories["AAPL"] = []models.PricePoint{
		{Date: day(-40), Close: 100},
		{Date: day(-20), Close: 110},
		{Date: day(-2), Close: 120},
	}
	gw.histories["ENI.MI"] = []models.PricePoint{
		{Date: day(-25), Close: 14},
	}
	e := newTestEngine(gw)

	holdings := []models.Holding{
		security("h1", "AAPL", "USD", 3, 90, 360, day(-60)),
		security("h2", "ENI.MI", "EUR", 10, 13, 140, day(-15)),
		cash("c1", "EUR", 500, time.Time{}),
	}
	series, err := e.ComputeHistoricalSeries(context.Background(), holdings, models.Window1M, "EUR")
	require.NoError(t, err)

	require.NotEmpty(t, series.Points)
	assert.Equal(t, WindowStart(models.Window1M, testNow, nil), series.Points[0].Date)
	assert.Equal(t, day(0), series.Points[len(series.Points)-1].Date)
	for i := 1; i < len(series.Points); i++ {
		assert.True(t, series.Points[i-1].Date.Before(series.Points[i].Date), "point %d not strictly ascending", i)
	}

	// today: AAPL 120*3*0.5 + ENI 14*10 + cash 500
	near(t, 180+140+500, series.FinalValue, "final value")
	// before ENI purchase: AAPL forward-filled from day -40 (100*3*0.5) + cash
	first := series.Points[0]
	near(t, 150+500, first.Value, "first value")
	near(t, first.Value, series.InitialValue, "initial is first point")
}

func TestComputeHistoricalSeries_HistoryFetchedWithLookback(t *testing.T) {
	gw := newMockGateway()
	gw.histories["AAPL"] = []models.PricePoint{{Date: day(-3), Close: 1}}
	e := newTestEngine(gw)

	_, err := e.ComputeHistoricalSeries(context.Background(), []models.Holding{security("h1", "AAPL", "EUR", 1, 1, 1, day(-100))}, models.WindowYTD, "EUR")
	require.NoError(t, err)

	jan1 := time.Date(testNow.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, jan1.Add(-HistoryLookback), gw.histFrom)
	assert.Equal(t, 1, gw.histCalls["AAPL"])
}

func TestComputeHistoricalSeries_ZeroDaysDropped(t *testing.T) {
	gw := newMockGateway()
	gw.histories["AAPL"] = []models.PricePoint{{Date: day(-30), Close: 5}}
	e := newTestEngine(gw)

	// bought 5 days ago; earlier window days total zero and are dropped
	series, err := e.ComputeHistoricalSeries(context.Background(), []models.Holding{security("h1", "AAPL", "EUR", 2, 4, 10, day(-5))}, models.Window1M, "EUR")
	require.NoError(t, err)

	require.Len(t, series.Points, 6)
	assert.Equal(t, day(-5), series.Points[0].Date)
	for _, p := range series.Points {
		near(t, 10, p.Value, "value")
	}
}

func TestComputeHistoricalSeries_FuturePurchaseIsFlat(t *testing.T) {
	gw := newMockGateway()
	gw.histories["AAPL"] = []models.PricePoint{{Date: day(-10), Close: 10}}
	e := newTestEngine(gw)

	// history exists but every window day totals zero
	h := security("h1", "AAPL", "EUR", 3, 10, 36, day(1))
	series, err := e.ComputeHistoricalSeries(context.Background(), []models.Holding{h}, models.Window1M, "EUR")
	require.NoError(t, err)

	require.Len(t, series.Points, 2)
	assert.True(t, series.Flat)
	assert.Equal(t, day(-1), series.Points[0].Date)
	assert.Equal(t, day(0), series.Points[1].Date)
	near(t, 36, series.Points[1].Value, "flat value from current")
}

func TestComputeHistoricalSeries_OnlyUnresolvableCurrencyIsFlat(t *testing.T) {
	gw := newMockGateway()
	gw.histories["XYZ.X"] = []models.PricePoint{{Date: day(-10), Close: 10}}
	e := newTestEngine(gw)

	h := security("h1", "XYZ.X", "XYZ", 1000, 10, 10000, day(-10))
	series, err := e.ComputeHistoricalSeries(context.Background(), []models.Holding{h}, models.Window1M, "EUR")
	require.NoError(t, err)

	require.Len(t, series.Points, 2)
	assert.True(t, series.Flat)
	near(t, 0, series.FinalValue, "excluded holding contributes nothing")
}

func TestComputeHistoricalSeries_UnresolvableCurrencySkipped(t *testing.T) {
	gw := newMockGateway()
	gw.histories["AAPL"] = []models.PricePoint{{Date: day(-10), Close: 10}}
	e := newTestEngine(gw)

	holdings := []models.Holding{
		security("h1", "AAPL", "EUR", 1, 10, 10, day(-10)),
		security("h2", "XYZ.X", "XYZ", 1000, 10, 10000, day(-10)),
	}
	series, err := e.ComputeHistoricalSeries(context.Background(), holdings, models.Window1M, "EUR")
	require.NoError(t, err)
	near(t, 10, series.FinalValue, "XYZ holding contributes nothing")
}

func TestWindowStart(t *testing.T) {
	today := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 5, 11, 0, 0, 0, 0, time.UTC), WindowStart(models.Window1M, today, nil))
	assert.Equal(t, time.Date(2024, 12, 11, 0, 0, 0, 0, time.UTC), WindowStart(models.Window6M, today, nil))
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), WindowStart(models.Window1Y, today, nil))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), WindowStart(models.WindowYTD, today, nil))
	assert.Equal(t, today.AddDate(0, 0, -1), WindowStart(models.WindowMax, today, nil), "MAX without purchase dates")

	holdings := []models.Holding{
		{PurchaseDate: time.Date(2023, 3, 2, 10, 0, 0, 0, time.UTC)},
		{PurchaseDate: time.Date(2022, 8, 9, 23, 0, 0, 0, time.UTC)},
		{},
	}
	assert.Equal(t, time.Date(2022, 8, 9, 0, 0, 0, 0, time.UTC), WindowStart(models.WindowMax, today, holdings))
}

func TestCloseAsOf(t *testing.T) {
	d := func(n int) time.Time { return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC) }
	points := []models.PricePoint{{Date: d(2), Close: 1}, {Date: d(5), Close: 2}}

	_, found := closeAsOf(points, d(1))
	assert.False(t, found)

	c, found := closeAsOf(points, d(2))
	assert.True(t, found)
	assert.Equal(t, 1.0, c)

	c, _ = closeAsOf(points, d(4))
	assert.Equal(t, 1.0, c)

	c, _ = closeAsOf(points, d(9))
	assert.Equal(t, 2.0, c)
}

// --- Allocation ---

func TestComputeAllocation_ByCategory(t *testing.T) {
	gw := newMockGateway()
	gw.rates["USD"] = 0.5
	e := newTestEngine(gw)

	holdings := []models.Holding{
		security("h1", "AAPL", "USD", 1, 100, 400, day(-1)),
		security("h2", "ENI.MI", "EUR", 1, 100, 300, day(-1)),
		{ID: "e1", Name: "World", Category: models.CategoryETF, Ticker: "VWCE.DE", Currency: "EUR", Quantity: 1, PurchasePrice: 1, CurrentValue: 1000},
		cash("c1", "EUR", 0, day(-1)),
	}
	slices, err := e.ComputeAllocation(context.Background(), holdings, "EUR", models.GroupByCategory)
	require.NoError(t, err)

	require.Len(t, slices, 2, "zero-value cash group excluded")
	assert.Equal(t, string(models.CategoryETF), slices[0].Key)
	assert.Equal(t, "ETFs", slices[0].Label)
	assert.Equal(t, models.CategoryETF.Color(), slices[0].Color)
	near(t, 1000, slices[0].Value, "etf value")
	near(t, 500, slices[1].Value, "stock value (200 + 300)")

	total := 0.0
	weights := 0.0
	for _, s := range slices {
		total += s.Value
		weights += s.Weight
	}
	snap, err := e.ComputeSnapshot(context.Background(), holdings, "EUR")
	require.NoError(t, err)
	near(t, snap.TotalValue, total, "allocation sums to snapshot total")
	near(t, 100, weights, "weights sum to 100")
}

func TestComputeAllocation_ByHoldingExcludesUnresolvable(t *testing.T) {
	gw := newMockGateway()
	e := newTestEngine(gw)

	holdings := []models.Holding{
		cash("a", "EUR", 100, day(-1)),
		cash("b", "EUR", 300, day(-1)),
		cash("z", "XYZ", 9999, day(-1)),
	}
	slices, err := e.ComputeAllocation(context.Background(), holdings, "EUR", models.GroupByHolding)
	require.NoError(t, err)

	require.Len(t, slices, 2)
	assert.Equal(t, "b", slices[0].Key)
	assert.Equal(t, "Bank b", slices[0].Label)
	assert.Equal(t, models.CategoryCashAccount.Color(), slices[0].Color)
	near(t, 75, slices[0].Weight, "weight of b")
	assert.Equal(t, "a", slices[1].Key)
}

func TestComputeAllocation_TiesOrderedByKey(t *testing.T) {
	e := newTestEngine(newMockGateway())

	holdings := []models.Holding{cash("b", "EUR", 100, day(-1)), cash("a", "EUR", 100, day(-1))}
	slices, err := e.ComputeAllocation(context.Background(), holdings, "EUR", models.GroupByHolding)
	require.NoError(t, err)
	require.Len(t, slices, 2)
	assert.Equal(t, "a", slices[0].Key)
}

func TestComputeAllocation_InvalidGroupBy(t *testing.T) {
	e := newTestEngine(newMockGateway())

	_, err := e.ComputeAllocation(context.Background(), nil, "EUR", models.GroupBy("sector"))
	assert.True(t, errors.Is(err, models.ErrInvalidGroupBy))
}

func TestComputeAllocation_Empty(t *testing.T) {
	e := newTestEngine(newMockGateway())

	slices, err := e.ComputeAllocation(context.Background(), nil, "EUR", models.GroupByCategory)
	require.NoError(t, err)
	assert.Empty(t, slices)
}

// --- Combined pass ---

func TestComputeValuation_SharesRates(t *testing.T) {
	gw := newMockGateway()
	gw.rates["USD"] = 0.9
	gw.histories["AAPL"] = []models.PricePoint{{Date: day(-3), Close: 120}}
	e := newTestEngine(gw)

	holdings := []models.Holding{security("h1", "AAPL", "USD", 10, 100, 1200, day(-10))}
	v, err := e.ComputeValuation(context.Background(), holdings, models.Window1M, "EUR", models.GroupByCategory)
	require.NoError(t, err)

	near(t, 1080, v.Snapshot.TotalValue, "snapshot total")
	near(t, 1080, v.Series.FinalValue, "series final")
	require.Len(t, v.Allocation, 1)
	near(t, 1080, v.Allocation[0].Value, "allocation")
	assert.Equal(t, 1, gw.rateCalls["USD"], "one rate lookup per pass")
}

func TestComputeSnapshot_ContextCancelled(t *testing.T) {
	gw := newMockGateway()
	gw.rates["USD"] = 1
	e := newTestEngine(gw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ComputeSnapshot(ctx, []models.Holding{cash("c", "USD", 1, day(-1))}, "EUR")
	assert.ErrorIs(t, err, context.Canceled)
}
