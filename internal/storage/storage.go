// Package storage defines the persistence contracts for listings and
// parse failures. Implementations live in the postgres and memory
// subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"carscout/internal/domain"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrConflict = errors.New("storage: conflict")
)

// ListingStore persists scraped listings and drives their lifecycle.
type ListingStore interface {
	// TouchDiscovered records that the candidates were seen in the
	// current cycle. Unknown listings get a placeholder row, known ones
	// get last_seen_at refreshed, inactive ones are revived. Returns
	// how many previously inactive rows came back.
	TouchDiscovered(ctx context.Context, source string, candidates []domain.ListingCandidate) (reactivated int64, err error)

	// UpsertParsed writes fully parsed listings, splitting the result
	// into freshly inserted and updated counts.
	UpsertParsed(ctx context.Context, listings []domain.ParsedListing) (inserted, updated int64, err error)

	// Deactivate marks the given listings inactive, keeping the rows.
	Deactivate(ctx context.Context, source string, externalIDs []string) (int64, error)

	// DeactivateStale deactivates active listings not seen for longer
	// than olderThan.
	DeactivateStale(ctx context.Context, source string, olderThan time.Duration) (int64, error)

	// DeleteInactive purges listings that have been inactive for longer
	// than olderThan.
	DeleteInactive(ctx context.Context, source string, olderThan time.Duration) (int64, error)

	CountActive(ctx context.Context, source string) (int64, error)

	// SelectUntranslated returns listings whose make, model or color
	// still contains Japanese text.
	SelectUntranslated(ctx context.Context, source string, limit int) ([]domain.PersistedListing, error)

	// UpdateTranslations rewrites the translatable fields of one row.
	UpdateTranslations(ctx context.Context, id int64, makeName, model string, color *string) error
}

// FailureStore records pages that could not be scraped.
type FailureStore interface {
	InsertMany(ctx context.Context, failures []domain.ParseFailure) error
}
