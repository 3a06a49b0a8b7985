package valuation

import (
	"time"

	"github.com/bobmcallan/folium/internal/models"
)

// computeSnapshot values holdings with a resolved rate table. Holdings whose
// currency has no rate are listed as excluded and left out of the totals.
func computeSnapshot(holdings []models.Holding, rates RateTable, now time.Time) *models.Snapshot {
	snap := &models.Snapshot{
		Reference:  rates.Reference(),
		Holdings:   make([]models.HoldingPerformance, 0, len(holdings)),
		ComputedAt: now,
	}

	for _, h := range holdings {
		line := models.HoldingPerformance{
			HoldingID:      h.ID,
			Name:           h.Name,
			Ticker:         h.Ticker,
			Category:       h.Category,
			Currency:       models.NormalizeCurrency(h.Currency),
			Performance:    models.NewPerformance(h.InitialValue, h.CurrentValue),
			DailyChange:    h.DailyChange,
			DailyChangePct: h.DailyChangePct,
		}
		if h.DailyChange != nil && h.IsSecurity() {
			line.PositionChange = models.Float64Ptr(*h.DailyChange * h.Quantity)
		}

		if r, ok := rates.Rate(h.Currency); ok {
			line.Rate = r
			line.ReferenceValue = h.CurrentValue * r
			line.Converted = true
			snap.TotalValue += h.CurrentValue * r
			snap.TotalInitialValue += h.InitialValue * r
		} else {
			snap.Excluded = append(snap.Excluded, h.ID)
		}

		snap.Holdings = append(snap.Holdings, line)
	}

	snap.Performance = models.NewPerformance(snap.TotalInitialValue, snap.TotalValue)
	return snap
}
