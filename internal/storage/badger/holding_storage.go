package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
	"github.com/bobmcallan/folium/internal/models"
)

type holdingStorage struct {
	store  *Store
	logger *common.Logger
	now    func() time.Time
}

// NewHoldingStorage creates a HoldingStore backed by BadgerHold.
func NewHoldingStorage(store *Store, logger *common.Logger) *holdingStorage {
	return &holdingStorage{store: store, logger: logger, now: time.Now}
}

func (s *holdingStorage) List(_ context.Context, userID string) ([]models.Holding, error) {
	var holdings []models.Holding
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID")
	if err := s.store.db.Find(&holdings, query); err != nil {
		return nil, fmt.Errorf("failed to list holdings for user '%s': %w", userID, err)
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		if !holdings[i].PurchaseDate.Equal(holdings[j].PurchaseDate) {
			return holdings[i].PurchaseDate.After(holdings[j].PurchaseDate)
		}
		return holdings[i].ID < holdings[j].ID
	})
	return holdings, nil
}

func (s *holdingStorage) Get(_ context.Context, userID, id string) (*models.Holding, error) {
	var h models.Holding
	if err := s.store.db.Get(id, &h); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("holding '%s': %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get holding '%s': %w", id, err)
	}
	// other users' records are reported as missing
	if h.UserID != userID {
		return nil, fmt.Errorf("holding '%s': %w", id, interfaces.ErrNotFound)
	}
	return &h, nil
}

func (s *holdingStorage) Create(_ context.Context, holding *models.Holding) error {
	if holding.ID == "" {
		return fmt.Errorf("%w: id must be assigned before create", models.ErrInvalidHolding)
	}

	now := s.now()
	if holding.CreatedAt.IsZero() {
		holding.CreatedAt = now
	}
	holding.UpdatedAt = now

	if err := s.store.db.Insert(holding.ID, holding); err != nil {
		return fmt.Errorf("failed to create holding '%s': %w", holding.ID, err)
	}
	s.logger.Debug().Str("id", holding.ID).Str("user", holding.UserID).Msg("Holding created")
	return nil
}

func (s *holdingStorage) Update(ctx context.Context, holding *models.Holding) error {
	existing, err := s.Get(ctx, holding.UserID, holding.ID)
	if err != nil {
		return err
	}

	holding.CreatedAt = existing.CreatedAt
	holding.UpdatedAt = s.now()

	if err := s.store.db.Update(holding.ID, holding); err != nil {
		return fmt.Errorf("failed to update holding '%s': %w", holding.ID, err)
	}
	s.logger.Debug().Str("id", holding.ID).Str("user", holding.UserID).Msg("Holding updated")
	return nil
}

func (s *holdingStorage) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	if err := s.store.db.Delete(id, models.Holding{}); err != nil {
		return fmt.Errorf("failed to delete holding '%s': %w", id, err)
	}
	s.logger.Debug().Str("id", id).Str("user", userID).Msg("Holding deleted")
	return nil
}

func (s *holdingStorage) Close() error {
	return s.store.Close()
}

// Ensure holdingStorage implements HoldingStore
var _ interfaces.HoldingStore = (*holdingStorage)(nil)
