package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kiku/internal/models"
	"go.uber.org/zap"
)

// retryFuzziness is the edit distance used when an exact search finds nothing.
const retryFuzziness = 2

// ErrForbidden is returned when a user touches another user's entry.
var ErrForbidden = errors.New("history entry belongs to another user")

// Service keeps the store and the full-text index in step.
type Service struct {
	store  Store
	index  Index
	logger *zap.Logger
	opts   *SearchOptions
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithSearchOptions sets the options used by Search.
func WithSearchOptions(opts *SearchOptions) ServiceOption {
	return func(s *Service) { s.opts = opts }
}

// NewService creates a history service over store and index.
func NewService(store Store, index Index, opts ...ServiceOption) *Service {
	s := &Service{store: store, index: index, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveSearchHistory records an answered query for userID.
func (s *Service) SaveSearchHistory(ctx context.Context, userID, query, answer string, sources []models.Source) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	entry := &models.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Query:     query,
		Answer:    answer,
		Sources:   sources,
		CreatedAt: time.Now(),
	}
	if err := s.store.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	if err := s.index.Index(ctx, entry); err != nil {
		return fmt.Errorf("failed to index history entry: %w", err)
	}
	s.logger.Debug("saved search history",
		zap.String("user_id", userID),
		zap.String("entry_id", entry.ID))
	return nil
}

// List returns a user's entries newest first.
func (s *Service) List(ctx context.Context, userID string, offset, limit int) ([]*models.HistoryEntry, error) {
	return s.store.List(ctx, userID, offset, limit)
}

// Count returns how many entries a user has.
func (s *Service) Count(ctx context.Context, userID string) (int64, error) {
	return s.store.Count(ctx, userID)
}

// IndexedCount returns how many entries the full-text index holds across all users.
func (s *Service) IndexedCount() (uint64, error) {
	return s.index.DocCount()
}

// Search returns a user's entries matching query, best match first. When an exact
// search finds nothing it is retried with fuzzy matching.
// Hits whose entry has since been removed from the store are skipped.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]*models.HistorySearchResult, error) {
	hits, err := s.index.Search(ctx, userID, query, limit, s.opts)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 && (s.opts == nil || s.opts.Fuzziness == 0) {
		fuzzy := &SearchOptions{Fuzziness: retryFuzziness}
		if s.opts != nil {
			fuzzy.QueryBoost = s.opts.QueryBoost
		}
		if hits, err = s.index.Search(ctx, userID, query, limit, fuzzy); err != nil {
			return nil, err
		}
	}
	results := make([]*models.HistorySearchResult, 0, len(hits))
	for _, hit := range hits {
		entry, err := s.store.Get(ctx, hit.ID)
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("index hit without stored entry", zap.String("entry_id", hit.ID))
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, &models.HistorySearchResult{Entry: entry, Score: hit.Score})
	}
	return results, nil
}

// Delete removes one of a user's entries from the store and the index.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		return ErrForbidden
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to remove history entry from index",
			zap.String("entry_id", id),
			zap.Error(err))
	}
	return nil
}

// Close closes the index and the store.
func (s *Service) Close() error {
	return errors.Join(s.index.Close(), s.store.Close())
}
