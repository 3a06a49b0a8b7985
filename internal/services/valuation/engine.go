// Package valuation computes portfolio snapshots, value history and allocation
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
	"github.com/bobmcallan/folium/internal/models"
)

// DefaultMaxConcurrency bounds parallel upstream lookups within a pass.
const DefaultMaxConcurrency = 8

// Engine implements ValuationEngine. It holds only immutable collaborators;
// every call is an independent pass with its own exchange-rate table.
type Engine struct {
	gateway        interfaces.QuoteGateway
	logger         *common.Logger
	now            func() time.Time
	maxConcurrency int
}

// Option configures the engine
type Option func(*Engine)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxConcurrency sets the parallel lookup limit
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// NewEngine creates a valuation engine over a quote gateway.
func NewEngine(gateway interfaces.QuoteGateway, logger *common.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	e := &Engine{
		gateway:        gateway,
		logger:         logger,
		now:            time.Now,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeSnapshot values holdings now in the reference currency.
func (e *Engine) ComputeSnapshot(ctx context.Context, holdings []models.Holding, reference string) (*models.Snapshot, error) {
	ref, err := parseReference(reference)
	if err != nil {
		return nil, err
	}

	rates, err := e.buildRateTable(ctx, holdings, ref)
	if err != nil {
		return nil, err
	}

	snap := computeSnapshot(holdings, rates, e.now())
	e.logger.Debug().Str("reference", ref).Int("holdings", len(holdings)).Float64("total", snap.TotalValue).Msg("Snapshot computed")
	return snap, nil
}

// ComputeHistoricalSeries reconstructs the daily portfolio value over window.
func (e *Engine) ComputeHistoricalSeries(ctx context.Context, holdings []models.Holding, window models.Window, reference string) (*models.Series, error) {
	w, err := models.ParseWindow(string(window))
	if err != nil {
		return nil, err
	}
	ref, err := parseReference(reference)
	if err != nil {
		return nil, err
	}

	rates, err := e.buildRateTable(ctx, holdings, ref)
	if err != nil {
		return nil, err
	}
	return e.series(ctx, holdings, w, rates)
}

// ComputeAllocation breaks the current value down by category or holding.
func (e *Engine) ComputeAllocation(ctx context.Context, holdings []models.Holding, reference string, groupBy models.GroupBy) ([]models.AllocationSlice, error) {
	g, err := models.ParseGroupBy(string(groupBy))
	if err != nil {
		return nil, err
	}
	ref, err := parseReference(reference)
	if err != nil {
		return nil, err
	}

	rates, err := e.buildRateTable(ctx, holdings, ref)
	if err != nil {
		return nil, err
	}
	return computeAllocation(holdings, rates, g), nil
}

// ComputeValuation runs snapshot, series and allocation in one pass sharing
// a single exchange-rate table.
func (e *Engine) ComputeValuation(ctx context.Context, holdings []models.Holding, window models.Window, reference string, groupBy models.GroupBy) (*models.Valuation, error) {
	w, err := models.ParseWindow(string(window))
	if err != nil {
		return nil, err
	}
	g, err := models.ParseGroupBy(string(groupBy))
	if err != nil {
		return nil, err
	}
	ref, err := parseReference(reference)
	if err != nil {
		return nil, err
	}

	rates, err := e.buildRateTable(ctx, holdings, ref)
	if err != nil {
		return nil, err
	}

	series, err := e.series(ctx, holdings, w, rates)
	if err != nil {
		return nil, err
	}

	return &models.Valuation{
		Snapshot:   computeSnapshot(holdings, rates, e.now()),
		Series:     series,
		Allocation: computeAllocation(holdings, rates, g),
	}, nil
}

func parseReference(reference string) (string, error) {
	ref := models.NormalizeCurrency(reference)
	if !models.IsCurrencyCode(ref) {
		return "", fmt.Errorf("%w: reference %q", models.ErrInvalidCurrency, reference)
	}
	return ref, nil
}

// Ensure Engine implements ValuationEngine
var _ interfaces.ValuationEngine = (*Engine)(nil)
