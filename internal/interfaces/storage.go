// Package interfaces defines service contracts for Folium
package interfaces

import (
	"context"
	"errors"

	"github.com/bobmcallan/folium/internal/models"
)

// ErrNotFound is returned by stores when a record does not exist for the user.
var ErrNotFound = errors.New("not found")

// HoldingStore persists holdings, scoped per user.
type HoldingStore interface {
	// List returns the user's holdings, most recent purchase first
	List(ctx context.Context, userID string) ([]models.Holding, error)

	// Get returns one holding, or ErrNotFound
	Get(ctx context.Context, userID, id string) (*models.Holding, error)

	// Create inserts a new holding; the ID must already be assigned
	Create(ctx context.Context, holding *models.Holding) error

	// Update replaces an existing holding, or returns ErrNotFound
	Update(ctx context.Context, holding *models.Holding) error

	// Delete removes a holding, or returns ErrNotFound
	Delete(ctx context.Context, userID, id string) error

	// Close releases the underlying database
	Close() error
}
