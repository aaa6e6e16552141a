package domain

import "time"

// ListingCandidate is a detail-page URL discovered from the sitemaps.
// It lives for one reconciliation cycle and is never persisted directly.
type ListingCandidate struct {
	ExternalID string
	URL        string
	LastMod    time.Time
}

// ParsedListing is the normalized record extracted from a detail page.
// Optional fields are pointers; nil means the page did not provide a value.
type ParsedListing struct {
	Source     string
	ExternalID string
	URL        string

	Make  string
	Model string
	Grade *string
	Color string
	Year  int

	PriceJPY      *int64
	PriceRUB      *int64
	TotalPriceJPY *int64
	TotalPriceRUB *int64

	MileageKM *int64

	Prefecture  *string
	ShopName    *string
	ShopAddress *string
	ShopPhone   *string

	Transmission *string
	DriveType    *string
	EngineCC     *int64
	Fuel         *string
	Steering     *string
	BodyType     *string

	ScrapedAt time.Time
}

// PersistedListing is a listing row owned by the store. Only the
// reconciler mutates it. Uniqueness is on (Source, ExternalID).
type PersistedListing struct {
	ID int64

	Source     string
	ExternalID string
	URL        string

	Make  string
	Model string
	Grade *string
	Color *string
	Year  *int

	PriceJPY      *int64
	PriceRUB      *int64
	TotalPriceJPY *int64
	TotalPriceRUB *int64

	MileageKM *int64

	Prefecture  *string
	ShopName    *string
	ShopAddress *string
	ShopPhone   *string

	Transmission *string
	DriveType    *string
	EngineCC     *int64
	Fuel         *string
	Steering     *string
	BodyType     *string

	ScrapedAt  *time.Time
	LastSeenAt time.Time
	IsActive   bool
	DeletedAt  *time.Time
}

// ParseFailure is an append-only diagnostic record. Unavailable marks
// failures that mean "the listing is gone" rather than "scraping broke".
type ParseFailure struct {
	URL          string
	ExternalID   string
	ErrorType    string
	Message      string
	StatusCode   *int
	DebugSnippet *string
	Unavailable  bool
	CreatedAt    time.Time
}
