package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kiku/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &models.HistoryEntry{
		ID:      "h1",
		UserID:  "u1",
		Query:   "What is AI?",
		Answer:  "Artificial intelligence.",
		Sources: []models.Source{{Title: "Wiki", URL: "https://example.com/ai"}},
	}
	if err := store.Save(ctx, entry); err != nil {
		t.Fatal(err)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.Get(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Query != "What is AI?" || got.Answer != "Artificial intelligence." || got.UserID != "u1" {
		t.Errorf("got %+v", got)
	}
	if len(got.Sources) != 1 || got.Sources[0].URL != "https://example.com/ai" {
		t.Errorf("sources = %+v", got.Sources)
	}

	n, err := store.Count(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	if err := store.Delete(ctx, "h1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "h1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "h1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_NilSourcesStoredAsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &models.HistoryEntry{ID: "h1", UserID: "u1", Query: "q", Answer: "a"}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Sources == nil || len(got.Sources) != 0 {
		t.Errorf("Sources = %#v, want empty non-nil", got.Sources)
	}
}

func TestSQLiteStore_ListNewestFirstPerUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		e := &models.HistoryEntry{ID: id, UserID: "u1", Query: id, Answer: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Save(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Save(ctx, &models.HistoryEntry{ID: "other", UserID: "u2", Query: "x", Answer: "x"}); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(ctx, "u1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "b" || ids[2] != "a" {
		t.Errorf("ids = %v, want [c b a]", ids)
	}

	page, err := store.List(ctx, "u1", 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("page = %+v, want [b]", page)
	}

	empty, err := store.List(ctx, "nobody", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List for unknown user = %#v, want empty", empty)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(context.Background(), &models.HistoryEntry{ID: "h1", UserID: "u1", Query: "q", Answer: "a"}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	store, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.Get(context.Background(), "h1"); err != nil {
		t.Errorf("entry lost after reopen: %v", err)
	}
}
