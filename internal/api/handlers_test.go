package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carscout/internal/domain"
	"carscout/internal/monitoring"
	"carscout/internal/storage/memory"
)

func TestHandleStats(t *testing.T) {
	monitoring.Init()

	store := memory.NewListingStore()
	price := int64(800_000)
	_, _, err := store.UpsertParsed(context.Background(), []domain.ParsedListing{{
		Source:     "carsensor",
		ExternalID: "AU1",
		URL:        "https://www.carsensor.net/usedcar/detail/AU1/index.html",
		Make:       "Toyota",
		Model:      "Prius",
		Year:       2011,
		PriceJPY:   &price,
		ScrapedAt:  time.Now().UTC(),
	}})
	require.NoError(t, err)

	h := &handlers{deps: Deps{
		Listings: store,
		Source:   "carsensor",
		Logger:   zap.NewNop(),
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	h.handleStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "carsensor", resp.Source)
	assert.Equal(t, int64(1), resp.ActiveListings)
}

func TestMetricsEndpointExposed(t *testing.T) {
	monitoring.Init()

	h := &handlers{deps: Deps{
		Listings: memory.NewListingStore(),
		Source:   "carsensor",
		Logger:   zap.NewNop(),
	}}
	router := newRouter(h, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSONError(rec, "boom", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "boom", body["message"])
}
