// Package history persists answered queries per user and makes them searchable.
package history

import (
	"context"
	"errors"

	"github.com/hyperjump/kiku/internal/models"
)

// ErrNotFound is returned when no history entry has the requested id.
var ErrNotFound = errors.New("history entry not found")

// Store defines history entry persistence operations.
type Store interface {
	Save(ctx context.Context, entry *models.HistoryEntry) error
	Get(ctx context.Context, id string) (*models.HistoryEntry, error)
	// List returns a user's entries newest first.
	List(ctx context.Context, userID string, offset, limit int) ([]*models.HistoryEntry, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, userID string) (int64, error)
	Close() error
}
