package valuation

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/folium/internal/models"
)

// RateTable maps source currencies to the multiplier into the reference
// currency. It is built once per pass and read-only afterwards.
type RateTable struct {
	reference string
	rates     map[string]float64
}

// NewRateTable builds a table from known rates. The reference currency
// always resolves to 1.
func NewRateTable(reference string, rates map[string]float64) RateTable {
	t := RateTable{
		reference: models.NormalizeCurrency(reference),
		rates:     make(map[string]float64, len(rates)),
	}
	for c, r := range rates {
		if r > 0 {
			t.rates[models.NormalizeCurrency(c)] = r
		}
	}
	return t
}

// Reference returns the reporting currency.
func (t RateTable) Reference() string {
	return t.reference
}

// Rate returns the multiplier for currency, or false when unknown.
func (t RateTable) Rate(currency string) (float64, bool) {
	c := models.NormalizeCurrency(currency)
	if c == t.reference {
		return 1, true
	}
	r, ok := t.rates[c]
	return r, ok
}

// Convert converts amount in currency into the reference currency.
func (t RateTable) Convert(amount float64, currency string) (float64, bool) {
	r, ok := t.Rate(currency)
	if !ok {
		return 0, false
	}
	return amount * r, true
}

// uniqueCurrencies returns the distinct non-reference currencies of holdings, sorted.
func uniqueCurrencies(holdings []models.Holding, reference string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range holdings {
		c := models.NormalizeCurrency(h.Currency)
		if c == reference || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// buildRateTable resolves every distinct holding currency concurrently.
// Unresolvable currencies are left out and logged once.
func (e *Engine) buildRateTable(ctx context.Context, holdings []models.Holding, reference string) (RateTable, error) {
	currencies := uniqueCurrencies(holdings, reference)
	resolved := make(map[string]float64, len(currencies))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for _, c := range currencies {
		c := c
		g.Go(func() error {
			r, ok := e.gateway.GetExchangeRate(gctx, c, reference)
			if !ok {
				e.logger.Warn().Str("currency", c).Str("reference", reference).Msg("No exchange rate, holdings in this currency are excluded")
				return nil
			}
			mu.Lock()
			resolved[c] = r
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return RateTable{}, err
	}
	if err := ctx.Err(); err != nil {
		return RateTable{}, err
	}
	return NewRateTable(reference, resolved), nil
}
