// Package holdings applies the holding lifecycle rules on top of the store
package holdings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
	"github.com/bobmcallan/folium/internal/models"
)

// refreshConcurrency bounds parallel quote lookups in RefreshHoldings.
const refreshConcurrency = 4

// Service implements HoldingService
type Service struct {
	store   interfaces.HoldingStore
	gateway interfaces.QuoteGateway
	logger  *common.Logger
	now     func() time.Time // injectable clock for testing
	newID   func() string
}

// NewService creates a new holdings service. gateway may be nil, in which
// case market values are never refreshed.
func NewService(store interfaces.HoldingStore, gateway interfaces.QuoteGateway, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		store:   store,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// ListHoldings returns the user's holdings, most recent purchase first.
func (s *Service) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	return s.store.List(ctx, userID)
}

// GetHolding returns one holding owned by the user.
func (s *Service) GetHolding(ctx context.Context, userID, id string) (*models.Holding, error) {
	return s.store.Get(ctx, userID, id)
}

// CreateHolding assigns an id, applies defaults, derives values and persists
// the holding. Securities are priced from the gateway when a quote is available.
func (s *Service) CreateHolding(ctx context.Context, userID string, h models.Holding) (*models.Holding, error) {
	if !h.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrInvalidHolding, h.Category)
	}

	now := s.now()
	h.ID = s.newID()
	h.UserID = userID
	h.Name = strings.TrimSpace(h.Name)
	h.Currency = models.NormalizeCurrency(h.Currency)
	h.CreatedAt = time.Time{}
	h.DailyChange, h.DailyChangePct = nil, nil
	if h.PurchaseDate.IsZero() {
		h.PurchaseDate = now
	}

	if h.IsSecurity() {
		h.Ticker = strings.ToUpper(strings.TrimSpace(h.Ticker))
		h.RecomputeInitialValue()
		h.CurrentValue = h.InitialValue

		quote := s.quote(ctx, h.Ticker)
		if h.Currency == "" && quote != nil {
			h.Currency = quote.Currency
		}
		if h.Name == "" && quote != nil {
			h.Name = quote.Name
		}
		if h.Currency == "" {
			h.Currency = models.DefaultCurrency
		}
		s.applyQuote(&h, quote)
	} else {
		if h.Currency == "" {
			h.Currency = models.DefaultCurrency
		}
		h.CurrentValue = h.InitialValue
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, &h); err != nil {
		return nil, err
	}

	s.logger.Info().Str("id", h.ID).Str("user", userID).Str("category", string(h.Category)).Msg("Holding created")
	return &h, nil
}

// UpdateHolding applies a partial edit. Position edits on securities
// recompute the initial value and refresh the market value; a balance edit on
// a cash account moves both values to the balance and resets the date to now.
func (s *Service) UpdateHolding(ctx context.Context, userID, id string, update models.HoldingUpdate) (*models.Holding, error) {
	h, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		h.Name = strings.TrimSpace(*update.Name)
	}

	if h.IsSecurity() {
		if update.Balance != nil {
			return nil, fmt.Errorf("%w: balance applies to cash accounts only", models.ErrInvalidHolding)
		}
		if update.TouchesPosition() {
			prevQty, prevValue := h.Quantity, h.CurrentValue
			if update.Quantity != nil {
				h.Quantity = *update.Quantity
			}
			if update.PurchasePrice != nil {
				h.PurchasePrice = *update.PurchasePrice
			}
			if update.PurchaseDate != nil {
				h.PurchaseDate = *update.PurchaseDate
			}
			h.RecomputeInitialValue()

			// without a fresh quote, keep the last known unit value
			if prevQty > 0 && prevValue > 0 {
				h.CurrentValue = prevValue / prevQty * h.Quantity
			} else {
				h.CurrentValue = h.InitialValue
			}
			s.applyQuote(h, s.quote(ctx, h.Ticker))
		}
	} else {
		if update.TouchesPosition() {
			return nil, fmt.Errorf("%w: cash accounts carry no quantity, price or purchase date", models.ErrInvalidHolding)
		}
		if update.Balance != nil {
			h.InitialValue = *update.Balance
			h.CurrentValue = *update.Balance
			h.PurchaseDate = s.now()
		}
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info().Str("id", id).Str("user", userID).Msg("Holding updated")
	return h, nil
}

// DeleteHolding removes a holding.
func (s *Service) DeleteHolding(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info().Str("id", id).Str("user", userID).Msg("Holding deleted")
	return nil
}

// RefreshHoldings re-prices every security holding of the user from live
// quotes and persists the ones that changed. Holdings without a usable quote
// keep their stored values. A failed save does not stop the others: the
// returned slice always reflects what is stored, and the error joins every
// save failure.
func (s *Service) RefreshHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	holdings, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return holdings, nil
	}

	var (
		mu        sync.Mutex
		refreshed int
		saveErrs  []error
	)
	var g errgroup.Group
	g.SetLimit(refreshConcurrency)

	for i := range holdings {
		h := &holdings[i]
		if !h.IsSecurity() {
			continue
		}
		g.Go(func() error {
			stored := *h
			if !s.applyQuote(h, s.quote(ctx, h.Ticker)) {
				return nil
			}
			err := s.store.Update(ctx, h)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				*h = stored
				saveErrs = append(saveErrs, fmt.Errorf("failed to save refreshed holding '%s': %w", h.ID, err))
				return nil
			}
			refreshed++
			return nil
		})
	}
	_ = g.Wait()

	err = errors.Join(saveErrs...)
	if err != nil {
		s.logger.Warn().Err(err).Str("user", userID).Int("failed", len(saveErrs)).Msg("Holdings refresh partially saved")
	}
	s.logger.Info().Str("user", userID).Int("holdings", len(holdings)).Int("refreshed", refreshed).Msg("Holdings refreshed")
	return holdings, err
}

func (s *Service) quote(ctx context.Context, ticker string) *models.Quote {
	if s.gateway == nil || ticker == "" {
		return nil
	}
	return s.gateway.GetQuote(ctx, ticker)
}

// applyQuote sets the market value and per-unit daily change of a security
// from a quote in the holding's currency. It reports whether the holding changed.
func (s *Service) applyQuote(h *models.Holding, q *models.Quote) bool {
	if q == nil {
		return false
	}
	if q.Currency != h.Currency {
		s.logger.Warn().Str("ticker", h.Ticker).Str("quote_currency", q.Currency).Str("holding_currency", h.Currency).Msg("Quote currency differs from holding, market value not refreshed")
		return false
	}

	h.CurrentValue = q.Price * h.Quantity
	h.DailyChange, h.DailyChangePct = nil, nil
	if q.DailyChange != nil {
		h.DailyChange = models.Float64Ptr(*q.DailyChange)
	}
	if q.DailyChangePct != nil {
		h.DailyChangePct = models.Float64Ptr(*q.DailyChangePct)
	}
	return true
}

// Ensure Service implements HoldingService
var _ interfaces.HoldingService = (*Service)(nil)
