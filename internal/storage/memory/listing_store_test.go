package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carscout/internal/domain"
)

const source = "carsensor"

func parsedListing(externalID string) domain.ParsedListing {
	price := int64(800_000)
	return domain.ParsedListing{
		Source:     source,
		ExternalID: externalID,
		URL:        "https://www.carsensor.net/usedcar/detail/" + externalID + "/index.html",
		Make:       "Toyota",
		Model:      "Prius",
		Color:      "Red",
		Year:       2011,
		PriceJPY:   &price,
		ScrapedAt:  time.Now().UTC(),
	}
}

func TestTouchDiscoveredCreatesPlaceholders(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	reactivated, err := store.TouchDiscovered(ctx, source, []domain.ListingCandidate{
		{ExternalID: "AU1", URL: "https://example.test/AU1"},
		{ExternalID: "AU2", URL: "https://example.test/AU2"},
	})
	require.NoError(t, err)
	assert.Zero(t, reactivated)

	row, ok := store.Get(source, "AU1")
	require.True(t, ok)
	assert.Equal(t, "Unknown", row.Make)
	assert.Nil(t, row.Year)
	assert.True(t, row.IsActive)
}

func TestTouchDiscoveredRevivesInactive(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	_, _, err := store.UpsertParsed(ctx, []domain.ParsedListing{parsedListing("AU1")})
	require.NoError(t, err)
	_, err = store.Deactivate(ctx, source, []string{"AU1"})
	require.NoError(t, err)

	reactivated, err := store.TouchDiscovered(ctx, source, []domain.ListingCandidate{
		{ExternalID: "AU1", URL: "https://example.test/AU1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), reactivated)

	row, _ := store.Get(source, "AU1")
	assert.True(t, row.IsActive)
	assert.Nil(t, row.DeletedAt)
	// Parsed fields survive the revival.
	assert.Equal(t, "Toyota", row.Make)
}

func TestUpsertParsedSplitsInsertedAndUpdated(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	inserted, updated, err := store.UpsertParsed(ctx, []domain.ParsedListing{
		parsedListing("AU1"), parsedListing("AU2"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)
	assert.Zero(t, updated)

	inserted, updated, err = store.UpsertParsed(ctx, []domain.ParsedListing{
		parsedListing("AU1"), parsedListing("AU3"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)
	assert.Equal(t, int64(1), updated)

	active, err := store.CountActive(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, int64(3), active)
}

func TestDeactivateAndSweeps(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	_, _, err := store.UpsertParsed(ctx, []domain.ParsedListing{
		parsedListing("AU1"), parsedListing("AU2"),
	})
	require.NoError(t, err)

	n, err := store.Deactivate(ctx, source, []string{"AU1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Deactivating again is a no-op.
	n, err = store.Deactivate(ctx, source, []string{"AU1"})
	require.NoError(t, err)
	assert.Zero(t, n)

	// Nothing is stale yet.
	n, err = store.DeactivateStale(ctx, source, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Everything is stale with a zero horizon.
	n, err = store.DeactivateStale(ctx, source, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Purge only removes rows inactive long enough.
	n, err = store.DeleteInactive(ctx, source, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.DeleteInactive(ctx, source, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, store.All())
}

func TestDeleteInactiveKeyedOnLastSeen(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	_, _, err := store.UpsertParsed(ctx, []domain.ParsedListing{parsedListing("AU1")})
	require.NoError(t, err)

	// Simulate a listing that dropped out of discovery a month ago and
	// was retired by the stale sweep just now.
	store.mu.Lock()
	store.rows[key(source, "AU1")].LastSeenAt = time.Now().UTC().Add(-31 * 24 * time.Hour)
	store.mu.Unlock()
	n, err := store.DeactivateStale(ctx, source, 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// The purge horizon counts from when the listing was last seen, not
	// from when the sweep flipped it inactive.
	n, err = store.DeleteInactive(ctx, source, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, store.All())
}

func TestSelectUntranslatedAndUpdate(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	japanese := parsedListing("AU1")
	japanese.Make = "トヨタ"
	japanese.Model = "プリウス"
	english := parsedListing("AU2")

	_, _, err := store.UpsertParsed(ctx, []domain.ParsedListing{japanese, english})
	require.NoError(t, err)

	rows, err := store.SelectUntranslated(ctx, source, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AU1", rows[0].ExternalID)

	color := "Red"
	require.NoError(t, store.UpdateTranslations(ctx, rows[0].ID, "Toyota", "Prius", &color))

	rows, err = store.SelectUntranslated(ctx, source, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	row, _ := store.Get(source, "AU1")
	assert.Equal(t, "Toyota", row.Make)
	assert.Equal(t, "Prius", row.Model)
}
