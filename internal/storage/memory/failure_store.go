package memory

import (
	"context"
	"sync"

	"carscout/internal/domain"
	"carscout/internal/storage"
)

// FailureStore keeps parse failures in a slice.
type FailureStore struct {
	mu       sync.RWMutex
	failures []domain.ParseFailure
}

var _ storage.FailureStore = (*FailureStore)(nil)

func NewFailureStore() *FailureStore {
	return &FailureStore{}
}

func (s *FailureStore) InsertMany(_ context.Context, failures []domain.ParseFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failures...)
	return nil
}

// All returns a copy of the recorded failures.
func (s *FailureStore) All() []domain.ParseFailure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ParseFailure, len(s.failures))
	copy(out, s.failures)
	return out
}
