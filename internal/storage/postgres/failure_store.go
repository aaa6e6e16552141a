package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carscout/internal/domain"
	"carscout/internal/storage"
)

// FailureStore is the pgx-backed storage.FailureStore.
type FailureStore struct {
	pool *pgxpool.Pool
}

var _ storage.FailureStore = (*FailureStore)(nil)

func NewFailureStore(pool *pgxpool.Pool) *FailureStore {
	return &FailureStore{pool: pool}
}

func (s *FailureStore) InsertMany(ctx context.Context, failures []domain.ParseFailure) error {
	if len(failures) == 0 {
		return nil
	}

	batch := new(pgx.Batch)
	for _, f := range failures {
		batch.Queue(`
			INSERT INTO parse_failures
			    (url, external_id, error_type, message, status_code, debug_snippet, unavailable, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.URL, f.ExternalID, f.ErrorType, f.Message, f.StatusCode, f.DebugSnippet, f.Unavailable, f.CreatedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	for range failures {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return mapError(err, "insert failures")
		}
	}
	return mapError(results.Close(), "insert failures: close batch")
}
