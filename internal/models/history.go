package models

import "time"

// HistoryEntry is one saved question/answer pair of a signed-in user.
type HistoryEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Query     string    `json:"query" db:"query"`
	Answer    string    `json:"answer" db:"answer"`
	Sources   []Source  `json:"sources" db:"sources"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HistorySearchResult is a history entry matched by a full-text search.
type HistorySearchResult struct {
	Entry *HistoryEntry `json:"entry"`
	Score float64       `json:"score"`
}
