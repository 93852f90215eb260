// Package chat keeps the per-user conversation list and drives searches for it.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hyperjump/kiku/internal/conversation"
	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/internal/search"
	"go.uber.org/zap"
)

// ErrConversationNotFound is returned when an id matches no conversation in the session.
var ErrConversationNotFound = errors.New("conversation not found")

// historySaveTimeout bounds a single background history write.
const historySaveTimeout = 10 * time.Second

// Searcher runs a query. *search.Orchestrator implements it.
type Searcher interface {
	Run(ctx context.Context, query string) (*models.SearchResult, search.Outcome)
	Busy() bool
	Err() string
}

// HistorySaver persists answered queries for a user.
type HistorySaver interface {
	SaveSearchHistory(ctx context.Context, userID, query, answer string, sources []models.Source) error
}

// Session is one client's conversation list plus the currently selected conversation.
type Session struct {
	searcher Searcher
	history  HistorySaver
	logger   *zap.Logger

	mu            sync.Mutex
	conversations []models.Conversation
	activeID      string
	userID        string

	saves sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithHistory enables saving answered queries for the session's user.
func WithHistory(h HistorySaver) Option {
	return func(s *Session) { s.history = h }
}

// NewSession creates an empty session.
func NewSession(searcher Searcher, opts ...Option) *Session {
	s := &Session{
		searcher:      searcher,
		logger:        zap.NewNop(),
		conversations: []models.Conversation{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask adds query to the active conversation, or starts a new one, and appends
// the answer. It returns the updated conversation, or nil for an empty query.
// A search cancelled by a newer one adds no AI turn.
func (s *Session) Ask(ctx context.Context, query string) (*models.Conversation, error) {
	q, ok := models.CleanQuery(query)
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	var conv models.Conversation
	if active, found := conversation.Find(s.conversations, s.activeID); found {
		conv = conversation.AppendUserMessage(active, q)
	} else {
		conv = conversation.Create(q)
		s.activeID = conv.ID
	}
	s.conversations = conversation.Upsert(s.conversations, conv)
	userID := s.userID
	s.mu.Unlock()

	result, outcome := s.searcher.Run(ctx, q)
	if result == nil || result.Text == "" || outcome == search.OutcomeSuperseded {
		return &conv, nil
	}

	s.mu.Lock()
	latest, stillThere := conversation.Find(s.conversations, conv.ID)
	if stillThere {
		conv = conversation.AppendAIMessage(latest, *result)
		s.conversations = conversation.Upsert(s.conversations, conv)
	} else {
		conv = conversation.AppendAIMessage(conv, *result)
	}
	s.mu.Unlock()

	if outcome == search.OutcomeCompleted && userID != "" && s.history != nil {
		s.saveHistory(userID, q, *result)
	}
	return &conv, nil
}

func (s *Session) saveHistory(userID, query string, result models.SearchResult) {
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
		defer cancel()
		if err := s.history.SaveSearchHistory(ctx, userID, query, result.Text, result.Sources); err != nil {
			s.logger.Warn("failed to save search history",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until pending history writes have finished.
func (s *Session) Wait() {
	s.saves.Wait()
}

// Select makes the conversation with id the active one.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := conversation.Find(s.conversations, id); !ok {
		return ErrConversationNotFound
	}
	s.activeID = id
	return nil
}

// ClearActive deselects the active conversation so the next Ask starts a new one.
func (s *Session) ClearActive() {
	s.mu.Lock()
	s.activeID = ""
	s.mu.Unlock()
}

// Delete removes the conversation with id and reports whether it existed.
func (s *Session) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := conversation.Find(s.conversations, id); !ok {
		return false
	}
	s.conversations = conversation.Delete(s.conversations, id)
	if s.activeID == id {
		s.activeID = ""
	}
	return true
}

// Conversations returns the conversations, most recently updated first.
func (s *Session) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Active returns the selected conversation.
func (s *Session) Active() (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return conversation.Find(s.conversations, s.activeID)
}

// ActiveID returns the id of the selected conversation or "".
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Busy reports whether a search is in flight.
func (s *Session) Busy() bool { return s.searcher.Busy() }

// Err returns the message of the last failed search, or "".
func (s *Session) Err() string { return s.searcher.Err() }

// SetUser sets the user whose history receives answered queries.
func (s *Session) SetUser(id string) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

// User returns the session's user id.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}
