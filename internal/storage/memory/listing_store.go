// Package memory provides mutex-guarded in-memory implementations of
// the storage contracts, used by tests and local runs without a
// database.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"carscout/internal/domain"
	"carscout/internal/storage"
)

var cjkRe = regexp.MustCompile(`[\x{3040}-\x{30ff}\x{3400}-\x{4dbf}\x{4e00}-\x{9fff}]`)

// ListingStore keeps listings in a map keyed by source and external id.
type ListingStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[string]*domain.PersistedListing
}

var _ storage.ListingStore = (*ListingStore)(nil)

func NewListingStore() *ListingStore {
	return &ListingStore{rows: make(map[string]*domain.PersistedListing)}
}

func key(source, externalID string) string {
	return source + "/" + externalID
}

func (s *ListingStore) TouchDiscovered(_ context.Context, source string, candidates []domain.ListingCandidate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var reactivated int64
	for _, c := range candidates {
		row, ok := s.rows[key(source, c.ExternalID)]
		if !ok {
			s.nextID++
			s.rows[key(source, c.ExternalID)] = &domain.PersistedListing{
				ID:         s.nextID,
				Source:     source,
				ExternalID: c.ExternalID,
				URL:        c.URL,
				Make:       "Unknown",
				Model:      "Unknown",
				LastSeenAt: now,
				IsActive:   true,
			}
			continue
		}
		if !row.IsActive {
			reactivated++
		}
		row.IsActive = true
		row.DeletedAt = nil
		row.LastSeenAt = now
	}
	return reactivated, nil
}

func (s *ListingStore) UpsertParsed(_ context.Context, listings []domain.ParsedListing) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var inserted, updated int64
	for _, l := range listings {
		scrapedAt := l.ScrapedAt
		row, ok := s.rows[key(l.Source, l.ExternalID)]
		if !ok {
			s.nextID++
			row = &domain.PersistedListing{ID: s.nextID}
			s.rows[key(l.Source, l.ExternalID)] = row
			inserted++
		} else {
			updated++
		}
		year := l.Year
		row.Source = l.Source
		row.ExternalID = l.ExternalID
		row.URL = l.URL
		row.Make = l.Make
		row.Model = l.Model
		row.Grade = l.Grade
		row.Color = strPtrOrNil(l.Color)
		row.Year = &year
		row.PriceJPY = l.PriceJPY
		row.PriceRUB = l.PriceRUB
		row.TotalPriceJPY = l.TotalPriceJPY
		row.TotalPriceRUB = l.TotalPriceRUB
		row.MileageKM = l.MileageKM
		row.Prefecture = l.Prefecture
		row.ShopName = l.ShopName
		row.ShopAddress = l.ShopAddress
		row.ShopPhone = l.ShopPhone
		row.Transmission = l.Transmission
		row.DriveType = l.DriveType
		row.Fuel = l.Fuel
		row.Steering = l.Steering
		row.BodyType = l.BodyType
		row.EngineCC = l.EngineCC
		row.ScrapedAt = &scrapedAt
		row.LastSeenAt = now
		row.IsActive = true
		row.DeletedAt = nil
	}
	return inserted, updated, nil
}

func (s *ListingStore) Deactivate(_ context.Context, source string, externalIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for _, id := range externalIDs {
		row, ok := s.rows[key(source, id)]
		if !ok || !row.IsActive {
			continue
		}
		row.IsActive = false
		row.DeletedAt = &now
		row.LastSeenAt = now
		n++
	}
	return n, nil
}

func (s *ListingStore) DeactivateStale(_ context.Context, source string, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)
	var n int64
	for _, row := range s.rows {
		if row.Source != source || !row.IsActive || !row.LastSeenAt.Before(cutoff) {
			continue
		}
		deletedAt := now
		row.IsActive = false
		row.DeletedAt = &deletedAt
		n++
	}
	return n, nil
}

func (s *ListingStore) DeleteInactive(_ context.Context, source string, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var n int64
	for k, row := range s.rows {
		if row.Source != source || row.IsActive || !row.LastSeenAt.Before(cutoff) {
			continue
		}
		delete(s.rows, k)
		n++
	}
	return n, nil
}

func (s *ListingStore) CountActive(_ context.Context, source string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, row := range s.rows {
		if row.Source == source && row.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *ListingStore) SelectUntranslated(_ context.Context, source string, limit int) ([]domain.PersistedListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PersistedListing
	for _, row := range s.rows {
		if row.Source != source {
			continue
		}
		color := ""
		if row.Color != nil {
			color = *row.Color
		}
		if cjkRe.MatchString(row.Make) || cjkRe.MatchString(row.Model) || cjkRe.MatchString(color) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ListingStore) UpdateTranslations(_ context.Context, id int64, makeName, model string, color *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.ID != id {
			continue
		}
		row.Make = makeName
		row.Model = model
		row.Color = color
		return nil
	}
	return fmt.Errorf("update translations: %w", storage.ErrNotFound)
}

// Get returns a copy of one row, for assertions in tests.
func (s *ListingStore) Get(source, externalID string) (domain.PersistedListing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key(source, externalID)]
	if !ok {
		return domain.PersistedListing{}, false
	}
	return *row, true
}

// All returns copies of every row, ordered by id.
func (s *ListingStore) All() []domain.PersistedListing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PersistedListing, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
