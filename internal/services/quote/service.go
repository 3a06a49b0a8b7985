// Package quote provides the market data gateway with normalisation and fallback
package quote

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
	"github.com/bobmcallan/folium/internal/models"
)

// MinSearchQueryLength is the shortest trimmed query sent upstream.
const MinSearchQueryLength = 2

// previousCloseLookback bounds the history fetched to synthesise a previous close.
const previousCloseLookback = 10 * 24 * time.Hour

// Service implements QuoteGateway over a primary and secondary quote path
// plus history, rate and search sources.
type Service struct {
	primary   interfaces.QuoteSource
	secondary interfaces.QuoteSource
	history   interfaces.HistorySource
	rates     interfaces.RateSource
	search    interfaces.SearchSource
	logger    *common.Logger
	now       func() time.Time // injectable clock for testing
}

// Sources groups the upstream collaborators of the gateway.
// Secondary, History, Rates and Search may be nil; the matching
// operations then report no data.
type Sources struct {
	Primary   interfaces.QuoteSource
	Secondary interfaces.QuoteSource
	History   interfaces.HistorySource
	Rates     interfaces.RateSource
	Search    interfaces.SearchSource
}

// NewService creates a new quote gateway.
func NewService(src Sources, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		primary:   src.Primary,
		secondary: src.Secondary,
		history:   src.History,
		rates:     src.Rates,
		search:    src.Search,
		logger:    logger,
		now:       time.Now,
	}
}

// GetQuote returns a validated quote, trying the primary path and then the
// secondary one. It returns nil when neither yields usable data.
func (s *Service) GetQuote(ctx context.Context, ticker string) *models.Quote {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return nil
	}

	if q := s.attempt(ctx, "primary", s.primary, ticker); q != nil {
		return q
	}

	if s.secondary != nil {
		s.logger.Info().Str("ticker", ticker).Msg("Primary quote unusable, trying secondary path")
		if q := s.attempt(ctx, "secondary", s.secondary, ticker); q != nil {
			return q
		}
	}

	s.logger.Warn().Str("ticker", ticker).Msg("No usable quote from any source")
	return nil
}

// attempt runs one retrieval path and normalises its result.
func (s *Service) attempt(ctx context.Context, path string, src interfaces.QuoteSource, ticker string) *models.Quote {
	if src == nil {
		return nil
	}

	raw, err := src.FetchQuote(ctx, ticker)
	if err != nil {
		s.logger.Debug().Err(err).Str("ticker", ticker).Str("path", path).Msg("Quote fetch failed")
		return nil
	}
	if raw == nil || raw.Price <= 0 || strings.TrimSpace(raw.Currency) == "" {
		s.logger.Debug().Str("ticker", ticker).Str("path", path).Msg("Quote missing price or currency")
		return nil
	}

	q := s.normalize(ctx, ticker, raw)
	if !valid(q) {
		s.logger.Debug().Str("ticker", ticker).Str("path", path).Msg("Quote failed validation")
		return nil
	}

	s.logger.Debug().Str("ticker", ticker).Str("path", path).Float64("price", q.Price).Str("currency", q.Currency).Msg("Quote resolved")
	return q
}

// normalize maps a raw provider record onto the canonical quote.
func (s *Service) normalize(ctx context.Context, ticker string, raw *models.RawQuote) *models.Quote {
	name := strings.TrimSpace(raw.LongName)
	if name == "" {
		name = strings.TrimSpace(raw.ShortName)
	}

	q := &models.Quote{
		Ticker:   ticker,
		Name:     name,
		Price:    raw.Price,
		Currency: models.NormalizeCurrency(raw.Currency),
		Source:   raw.Source,
	}

	change, pct, ok := deriveDailyChange(raw)
	if !ok {
		if prev := s.previousClose(ctx, ticker); prev > 0 {
			change = raw.Price - prev
			pct = change / prev
			ok = true
		}
	}
	if ok {
		q.DailyChange = models.Float64Ptr(change)
		q.DailyChangePct = models.Float64Ptr(pct)
	}
	return q
}

// deriveDailyChange resolves the daily change from the quote itself: the
// previous close when present, else the provider change fields.
func deriveDailyChange(raw *models.RawQuote) (change, pct float64, ok bool) {
	if raw.PreviousClose > 0 {
		change = raw.Price - raw.PreviousClose
		return change, change / raw.PreviousClose, true
	}

	switch {
	case raw.Change != nil && raw.ChangePct != nil:
		return *raw.Change, NormalizePercent(*raw.ChangePct), true
	case raw.ChangePct != nil:
		pct = NormalizePercent(*raw.ChangePct)
		if pct <= -1 {
			return 0, 0, false
		}
		prev := raw.Price / (1 + pct)
		return raw.Price - prev, pct, true
	case raw.Change != nil:
		prev := raw.Price - *raw.Change
		if prev <= 0 {
			return 0, 0, false
		}
		return *raw.Change, *raw.Change / prev, true
	}
	return 0, 0, false
}

// NormalizePercent converts a provider percent to a fraction. Values with a
// magnitude above 1 are taken as whole percent. A genuine move beyond 100%
// in a day is therefore read as a whole percent too.
func NormalizePercent(v float64) float64 {
	if math.Abs(v) > 1 {
		return v / 100
	}
	return v
}

// previousClose returns the latest historical close strictly before today, or 0.
func (s *Service) previousClose(ctx context.Context, ticker string) float64 {
	today := models.DayOf(s.now())
	points := s.GetHistoricalData(ctx, ticker, today.Add(-previousCloseLookback))
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Date.Before(today) {
			return points[i].Close
		}
	}
	return 0
}

func valid(q *models.Quote) bool {
	return q != nil && q.Price > 0 && models.IsCurrencyCode(q.Currency) && q.Name != ""
}

// GetHistoricalData returns daily closes since start, ascending by date with
// non-positive closes dropped and duplicate days collapsed (last wins).
func (s *Service) GetHistoricalData(ctx context.Context, ticker string, start time.Time) []models.PricePoint {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" || s.history == nil {
		return nil
	}

	raw, err := s.history.FetchHistory(ctx, ticker, start)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Historical data unavailable")
		return nil
	}

	byDay := make(map[time.Time]float64, len(raw))
	for _, p := range raw {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			continue
		}
		byDay[models.DayOf(p.Date)] = p.Close
	}

	points := make([]models.PricePoint, 0, len(byDay))
	for d, c := range byDay {
		points = append(points, models.PricePoint{Date: d, Close: c})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	s.logger.Debug().Str("ticker", ticker).Int("points", len(points)).Msg("Historical data resolved")
	return points
}

// GetExchangeRate returns the multiplier converting from into to.
// Identical codes resolve to 1 without an upstream call.
func (s *Service) GetExchangeRate(ctx context.Context, from, to string) (float64, bool) {
	from = models.NormalizeCurrency(from)
	to = models.NormalizeCurrency(to)
	if from == to {
		return 1, true
	}
	if !models.IsCurrencyCode(from) || !models.IsCurrencyCode(to) || s.rates == nil {
		return 0, false
	}

	r, err := s.rates.FetchRate(ctx, from, to)
	if err != nil {
		s.logger.Warn().Err(err).Str("from", from).Str("to", to).Msg("Exchange rate unavailable")
		return 0, false
	}
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		s.logger.Warn().Str("from", from).Str("to", to).Float64("rate", r).Msg("Exchange rate not usable")
		return 0, false
	}
	return r, true
}

// SearchSecurities returns stocks and ETFs matching query.
func (s *Service) SearchSecurities(ctx context.Context, query string) []models.SearchResult {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSearchQueryLength || s.search == nil {
		return nil
	}

	raw, err := s.search.Search(ctx, query)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("Security search failed")
		return nil
	}

	results := make([]models.SearchResult, 0, len(raw))
	for _, r := range raw {
		if r.Type != models.SecurityTypeEquity && r.Type != models.SecurityTypeETF {
			continue
		}
		if r.Ticker == "" || strings.Contains(r.Ticker, "=") {
			continue
		}
		results = append(results, r)
	}
	return results
}

// Ensure Service implements QuoteGateway
var _ interfaces.QuoteGateway = (*Service)(nil)
