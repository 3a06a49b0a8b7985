package valuation

import (
	"sort"

	"github.com/bobmcallan/folium/internal/models"
)

// computeAllocation groups converted current values by category or holding.
// Zero-value groups and holdings without a rate are left out; slices are
// ordered by value descending, then key.
func computeAllocation(holdings []models.Holding, rates RateTable, groupBy models.GroupBy) []models.AllocationSlice {
	groups := make(map[string]*models.AllocationSlice)

	for _, h := range holdings {
		v, ok := rates.Convert(h.CurrentValue, h.Currency)
		if !ok {
			continue
		}

		key, label := string(h.Category), h.Category.Label()
		if groupBy == models.GroupByHolding {
			key, label = h.ID, h.Name
		}

		s, exists := groups[key]
		if !exists {
			s = &models.AllocationSlice{Key: key, Label: label, Color: h.Category.Color()}
			groups[key] = s
		}
		s.Value += v
	}

	total := 0.0
	slices := make([]models.AllocationSlice, 0, len(groups))
	for _, s := range groups {
		if s.Value == 0 {
			continue
		}
		total += s.Value
		slices = append(slices, *s)
	}

	for i := range slices {
		slices[i].Weight = slices[i].Value / total * 100
	}

	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Value != slices[j].Value {
			return slices[i].Value > slices[j].Value
		}
		return slices[i].Key < slices[j].Key
	})
	return slices
}
