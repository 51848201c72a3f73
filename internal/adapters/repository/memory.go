package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/vnclub/internal/domain/model"
)

// MemoryStore is an in-memory Store. It enforces the same uniqueness rules
// as the SQLite schema and is used for dry runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	closed      bool
	titles      []model.TitleEntry
	metadata    map[string]model.MetadataEntry
	completions map[int64]model.CompletionEvent
	byUserTitle map[string]int64
	nextID      int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		metadata:    make(map[string]model.MetadataEntry),
		completions: make(map[int64]model.CompletionEvent),
		byUserTitle: make(map[string]int64),
		nextID:      1,
	}
}

// Ping reports ErrClosed after Close.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// InsertTitle implements catalog.Store.
func (s *MemoryStore) InsertTitle(_ context.Context, e model.TitleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.titles {
		if t.ID == e.ID {
			return fmt.Errorf("title %s: %w", e.ID, model.ErrDuplicateTitle)
		}
	}
	s.titles = append(s.titles, e)
	return nil
}

// DeleteTitle implements catalog.Store.
func (s *MemoryStore) DeleteTitle(_ context.Context, id string) (model.TitleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.titles {
		if t.ID == id {
			s.titles = append(s.titles[:i], s.titles[i+1:]...)
			return t, nil
		}
	}
	return model.TitleEntry{}, fmt.Errorf("title %s: %w", id, model.ErrNotFound)
}

// ListTitles implements catalog.Store.
func (s *MemoryStore) ListTitles(context.Context) ([]model.TitleEntry, error) {
	s.mu.RLock()
	out := make([]model.TitleEntry, len(s.titles))
	copy(out, s.titles)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartPeriod > out[j].StartPeriod })
	return out, nil
}

// GetMetadata implements metadata.Store.
func (s *MemoryStore) GetMetadata(_ context.Context, id string) (model.MetadataEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.metadata[id]
	if !ok {
		return model.MetadataEntry{}, fmt.Errorf("metadata %s: %w", id, model.ErrNotFound)
	}
	return e, nil
}

// UpsertMetadata implements metadata.Store.
func (s *MemoryStore) UpsertMetadata(_ context.Context, e model.MetadataEntry) error {
	s.mu.Lock()
	s.metadata[e.ID] = e
	s.mu.Unlock()
	return nil
}

// InsertCompletion implements ledger.Store.
func (s *MemoryStore) InsertCompletion(_ context.Context, e model.CompletionEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ""
	if e.HasTitle() {
		key = e.UserID + "\x00" + *e.TitleID
		if _, exists := s.byUserTitle[key]; exists {
			return 0, fmt.Errorf("user %s title %s: %w", e.UserID, *e.TitleID, model.ErrDuplicateCompletion)
		}
	}

	e.ID = s.nextID
	s.nextID++
	s.completions[e.ID] = e
	if key != "" {
		s.byUserTitle[key] = e.ID
	}
	return e.ID, nil
}

// GetCompletion implements ledger.Store.
func (s *MemoryStore) GetCompletion(_ context.Context, id int64) (model.CompletionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.completions[id]
	if !ok {
		return model.CompletionEvent{}, fmt.Errorf("completion %d: %w", id, model.ErrNotFound)
	}
	return e, nil
}

// DeleteCompletion implements ledger.Store.
func (s *MemoryStore) DeleteCompletion(_ context.Context, id int64) (model.CompletionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.completions[id]
	if !ok {
		return model.CompletionEvent{}, fmt.Errorf("completion %d: %w", id, model.ErrNotFound)
	}
	delete(s.completions, id)
	if e.HasTitle() {
		delete(s.byUserTitle, e.UserID+"\x00"+*e.TitleID)
	}
	return e, nil
}

// UpdateReview implements ledger.Store.
func (s *MemoryStore) UpdateReview(_ context.Context, id int64, patch model.ReviewPatch) (model.CompletionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.completions[id]
	if !ok {
		return model.CompletionEvent{}, fmt.Errorf("completion %d: %w", id, model.ErrNotFound)
	}
	if patch.Rating != nil {
		e.Rating = model.IntPtr(*patch.Rating)
	}
	if patch.Comment != nil {
		e.Comment = *patch.Comment
	}
	s.completions[id] = e
	return e, nil
}

// HasCompletion implements ledger.Store.
func (s *MemoryStore) HasCompletion(_ context.Context, userID, titleID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUserTitle[userID+"\x00"+titleID]
	return ok, nil
}

// SumPoints implements ledger.Store.
func (s *MemoryStore) SumPoints(_ context.Context, userID string, f model.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, e := range s.completions {
		if e.UserID == userID && f.Match(e) {
			total += e.Points
		}
	}
	return total, nil
}

// ListByUser implements ledger.Store.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]model.CompletionEvent, error) {
	s.mu.RLock()
	out := make([]model.CompletionEvent, 0)
	for _, e := range s.completions {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period > out[j].Period
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Scan implements ledger.Store.
func (s *MemoryStore) Scan(_ context.Context, f model.Filter) ([]model.CompletionEvent, error) {
	s.mu.RLock()
	out := make([]model.CompletionEvent, 0, len(s.completions))
	for _, e := range s.completions {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
