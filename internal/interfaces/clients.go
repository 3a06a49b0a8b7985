// Package interfaces defines service contracts for Folium
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folium/internal/models"
)

// QuoteSource is one upstream retrieval path for live quotes.
type QuoteSource interface {
	// FetchQuote returns the provider's raw quote for a ticker
	FetchQuote(ctx context.Context, ticker string) (*models.RawQuote, error)
}

// QuoteSourceFunc adapts a function to a QuoteSource.
type QuoteSourceFunc func(ctx context.Context, ticker string) (*models.RawQuote, error)

// FetchQuote calls f(ctx, ticker).
func (f QuoteSourceFunc) FetchQuote(ctx context.Context, ticker string) (*models.RawQuote, error) {
	return f(ctx, ticker)
}

// HistorySource provides daily closing prices.
type HistorySource interface {
	// FetchHistory returns daily closes from start (inclusive) to today, in any order
	FetchHistory(ctx context.Context, ticker string, start time.Time) ([]models.PricePoint, error)
}

// RateSource provides spot exchange rates.
type RateSource interface {
	// FetchRate returns the multiplier converting one unit of from into to
	FetchRate(ctx context.Context, from, to string) (float64, error)
}

// SearchSource looks up securities by free text.
type SearchSource interface {
	// Search returns raw matches; type is the provider's quote type (EQUITY, ETF, ...)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}
