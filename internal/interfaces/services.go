// Package interfaces defines service contracts for Folium
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folium/internal/models"
)

// QuoteGateway is the market-data boundary consumed by the valuation engine.
// It never returns errors for data gaps: absent data is reported as nil,
// empty or false.
type QuoteGateway interface {
	// GetQuote returns a validated quote, or nil when no usable data exists
	GetQuote(ctx context.Context, ticker string) *models.Quote

	// GetHistoricalData returns daily closes since start, ascending; empty on failure
	GetHistoricalData(ctx context.Context, ticker string, start time.Time) []models.PricePoint

	// GetExchangeRate returns the from→to multiplier; false on failure or unknown pair
	GetExchangeRate(ctx context.Context, from, to string) (float64, bool)

	// SearchSecurities returns stocks and ETFs matching query
	SearchSecurities(ctx context.Context, query string) []models.SearchResult
}

// ValuationEngine computes portfolio views. Each call is an independent pass.
type ValuationEngine interface {
	// ComputeSnapshot values holdings now, in the reference currency
	ComputeSnapshot(ctx context.Context, holdings []models.Holding, reference string) (*models.Snapshot, error)

	// ComputeHistoricalSeries reconstructs daily portfolio value over window
	ComputeHistoricalSeries(ctx context.Context, holdings []models.Holding, window models.Window, reference string) (*models.Series, error)

	// ComputeAllocation breaks the current value down by category or holding
	ComputeAllocation(ctx context.Context, holdings []models.Holding, reference string, groupBy models.GroupBy) ([]models.AllocationSlice, error)

	// ComputeValuation runs all three in one pass sharing exchange rates
	ComputeValuation(ctx context.Context, holdings []models.Holding, window models.Window, reference string, groupBy models.GroupBy) (*models.Valuation, error)
}

// HoldingService applies the holding lifecycle rules on top of the store.
type HoldingService interface {
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	GetHolding(ctx context.Context, userID, id string) (*models.Holding, error)
	CreateHolding(ctx context.Context, userID string, holding models.Holding) (*models.Holding, error)
	UpdateHolding(ctx context.Context, userID, id string, update models.HoldingUpdate) (*models.Holding, error)
	DeleteHolding(ctx context.Context, userID, id string) error
	// RefreshHoldings re-prices securities. On partial save failure it returns
	// the holdings as stored together with the joined save errors.
	RefreshHoldings(ctx context.Context, userID string) ([]models.Holding, error)
}
