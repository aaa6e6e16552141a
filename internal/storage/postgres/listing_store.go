package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carscout/internal/domain"
	"carscout/internal/storage"
)

// Japanese script ranges as literal characters: Postgres ARE regexes do
// not take brace escapes.
const cjkPattern = `[ぁ-んァ-ヶ一-龠]`

// ListingStore is the pgx-backed storage.ListingStore.
type ListingStore struct {
	pool      *pgxpool.Pool
	batchSize int
}

var _ storage.ListingStore = (*ListingStore)(nil)

func NewListingStore(pool *pgxpool.Pool, batchSize int) *ListingStore {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ListingStore{pool: pool, batchSize: batchSize}
}

func (s *ListingStore) TouchDiscovered(ctx context.Context, source string, candidates []domain.ListingCandidate) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	externalIDs := make([]string, len(candidates))
	urls := make([]string, len(candidates))
	for i, c := range candidates {
		externalIDs[i] = c.ExternalID
		urls[i] = c.URL
	}

	// Count and revive previously inactive rows before the touch pass,
	// since ON CONFLICT cannot see pre-update column values.
	var reactivated int64
	err := s.pool.QueryRow(ctx, `
		WITH revived AS (
			UPDATE listings
			SET is_active = TRUE, deleted_at = NULL, last_seen_at = now()
			WHERE source = $1 AND external_id = ANY($2) AND NOT is_active
			RETURNING id
		)
		SELECT count(*) FROM revived`,
		source, externalIDs,
	).Scan(&reactivated)
	if err != nil {
		return 0, mapError(err, "touch discovered: revive")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO listings (source, external_id, url)
		SELECT $1, u.external_id, u.url
		FROM unnest($2::text[], $3::text[]) AS u(external_id, url)
		ON CONFLICT (source, external_id) DO UPDATE
		SET last_seen_at = now(), is_active = TRUE, deleted_at = NULL`,
		source, externalIDs, urls,
	)
	if err != nil {
		return 0, mapError(err, "touch discovered: upsert")
	}
	return reactivated, nil
}

const upsertListingSQL = `
INSERT INTO listings (
    source, external_id, url, make, model, grade, color, year,
    price_jpy, price_rub, total_price_jpy, total_price_rub, mileage_km,
    prefecture, shop_name, shop_address, shop_phone,
    transmission, drive_type, fuel, steering, body_type, engine_cc,
    scraped_at, last_seen_at, is_active, deleted_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8,
    $9, $10, $11, $12, $13,
    $14, $15, $16, $17,
    $18, $19, $20, $21, $22, $23,
    $24, now(), TRUE, NULL
)
ON CONFLICT (source, external_id) DO UPDATE SET
    url = EXCLUDED.url,
    make = EXCLUDED.make,
    model = EXCLUDED.model,
    grade = EXCLUDED.grade,
    color = EXCLUDED.color,
    year = EXCLUDED.year,
    price_jpy = EXCLUDED.price_jpy,
    price_rub = EXCLUDED.price_rub,
    total_price_jpy = EXCLUDED.total_price_jpy,
    total_price_rub = EXCLUDED.total_price_rub,
    mileage_km = EXCLUDED.mileage_km,
    prefecture = EXCLUDED.prefecture,
    shop_name = EXCLUDED.shop_name,
    shop_address = EXCLUDED.shop_address,
    shop_phone = EXCLUDED.shop_phone,
    transmission = EXCLUDED.transmission,
    drive_type = EXCLUDED.drive_type,
    fuel = EXCLUDED.fuel,
    steering = EXCLUDED.steering,
    body_type = EXCLUDED.body_type,
    engine_cc = EXCLUDED.engine_cc,
    scraped_at = EXCLUDED.scraped_at,
    last_seen_at = now(),
    is_active = TRUE,
    deleted_at = NULL
RETURNING (xmax = 0) AS inserted`

func (s *ListingStore) UpsertParsed(ctx context.Context, listings []domain.ParsedListing) (int64, int64, error) {
	var inserted, updated int64

	for offset := 0; offset < len(listings); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(listings) {
			end = len(listings)
		}
		chunk := listings[offset:end]

		batch := new(pgx.Batch)
		for _, l := range chunk {
			batch.Queue(upsertListingSQL,
				l.Source, l.ExternalID, l.URL, l.Make, l.Model, l.Grade, l.Color, l.Year,
				l.PriceJPY, l.PriceRUB, l.TotalPriceJPY, l.TotalPriceRUB, l.MileageKM,
				l.Prefecture, l.ShopName, l.ShopAddress, l.ShopPhone,
				l.Transmission, l.DriveType, l.Fuel, l.Steering, l.BodyType, l.EngineCC,
				l.ScrapedAt,
			)
		}

		results := s.pool.SendBatch(ctx, batch)
		for range chunk {
			var wasInsert bool
			if err := results.QueryRow().Scan(&wasInsert); err != nil {
				results.Close()
				return inserted, updated, mapError(err, "upsert parsed")
			}
			if wasInsert {
				inserted++
			} else {
				updated++
			}
		}
		if err := results.Close(); err != nil {
			return inserted, updated, mapError(err, "upsert parsed: close batch")
		}
	}
	return inserted, updated, nil
}

func (s *ListingStore) Deactivate(ctx context.Context, source string, externalIDs []string) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings
		SET is_active = FALSE, deleted_at = now(), last_seen_at = now()
		WHERE source = $1 AND external_id = ANY($2) AND is_active`,
		source, externalIDs,
	)
	if err != nil {
		return 0, mapError(err, "deactivate")
	}
	return tag.RowsAffected(), nil
}

func (s *ListingStore) DeactivateStale(ctx context.Context, source string, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings
		SET is_active = FALSE, deleted_at = now()
		WHERE source = $1 AND is_active AND last_seen_at < now() - make_interval(secs => $2)`,
		source, olderThan.Seconds(),
	)
	if err != nil {
		return 0, mapError(err, "deactivate stale")
	}
	return tag.RowsAffected(), nil
}

func (s *ListingStore) DeleteInactive(ctx context.Context, source string, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM listings
		WHERE source = $1 AND NOT is_active
		  AND last_seen_at < now() - make_interval(secs => $2)`,
		source, olderThan.Seconds(),
	)
	if err != nil {
		return 0, mapError(err, "delete inactive")
	}
	return tag.RowsAffected(), nil
}

func (s *ListingStore) CountActive(ctx context.Context, source string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM listings WHERE source = $1 AND is_active`,
		source,
	).Scan(&count)
	if err != nil {
		return 0, mapError(err, "count active")
	}
	return count, nil
}

func (s *ListingStore) SelectUntranslated(ctx context.Context, source string, limit int) ([]domain.PersistedListing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, external_id, url, make, model, grade, color, year,
		       price_jpy, price_rub, total_price_jpy, total_price_rub, mileage_km,
		       prefecture, shop_name, shop_address, shop_phone,
		       transmission, drive_type, fuel, steering, body_type, engine_cc,
		       scraped_at, last_seen_at, is_active, deleted_at
		FROM listings
		WHERE source = $1
		  AND (make ~ $2 OR model ~ $2 OR coalesce(color, '') ~ $2)
		ORDER BY id
		LIMIT $3`,
		source, cjkPattern, limit,
	)
	if err != nil {
		return nil, mapError(err, "select untranslated")
	}
	defer rows.Close()

	var listings []domain.PersistedListing
	for rows.Next() {
		var l domain.PersistedListing
		err := rows.Scan(
			&l.ID, &l.Source, &l.ExternalID, &l.URL, &l.Make, &l.Model, &l.Grade, &l.Color, &l.Year,
			&l.PriceJPY, &l.PriceRUB, &l.TotalPriceJPY, &l.TotalPriceRUB, &l.MileageKM,
			&l.Prefecture, &l.ShopName, &l.ShopAddress, &l.ShopPhone,
			&l.Transmission, &l.DriveType, &l.Fuel, &l.Steering, &l.BodyType, &l.EngineCC,
			&l.ScrapedAt, &l.LastSeenAt, &l.IsActive, &l.DeletedAt,
		)
		if err != nil {
			return nil, mapError(err, "select untranslated: scan")
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "select untranslated: rows")
	}
	return listings, nil
}

func (s *ListingStore) UpdateTranslations(ctx context.Context, id int64, makeName, model string, color *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings SET make = $2, model = $3, color = $4 WHERE id = $1`,
		id, makeName, model, color,
	)
	if err != nil {
		return mapError(err, "update translations")
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "update translations")
	}
	return nil
}
