package app

import (
	"context"
	"time"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
)

// startPriceScheduler re-prices a user's holdings on a fixed interval until ctx ends.
func startPriceScheduler(ctx context.Context, holdings interfaces.HoldingService, userID string, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Price scheduler: stopped")
			return
		case <-ticker.C:
			refreshPrices(ctx, holdings, userID, logger)
		}
	}
}

func refreshPrices(ctx context.Context, holdings interfaces.HoldingService, userID string, logger *common.Logger) {
	start := time.Now()

	refreshed, err := holdings.RefreshHoldings(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Str("user", userID).Msg("Price refresh: failed")
		return
	}

	logger.Info().
		Str("user", userID).
		Int("holdings", len(refreshed)).
		Dur("elapsed", time.Since(start)).
		Msg("Price refresh: complete")
}
