package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carscout/internal/translator"
)

const listingURL = "https://www.carsensor.net/usedcar/detail/AU123/index.html"

const listingHTML = `<!DOCTYPE html>
<html><body>
<h1 class="title1">トヨタ プリウス Sツーリングセレクション（レッド）</h1>
<p class="basePrice__price" content="800000">80.0<span class="basePrice__unit">万円</span></p>
<p class="totalPrice__price">88.5万円</p>
<div class="specWrap">
  <div class="specWrap__box"><p class="specWrap__box__title">年式</p><p class="specWrap__box__num">2011(H23)</p></div>
  <div class="specWrap__box"><p class="specWrap__box__title">走行距離</p><p class="specWrap__box__num">3.4万km</p></div>
  <div class="specWrap__box"><p class="specWrap__box__title">排気量</p><p class="specWrap__box__num">1800cc</p></div>
</div>
<table>
  <tr><th>色</th><td>レッド</td></tr>
  <tr><th>地域</th><td>東京都</td></tr>
  <tr><th>ミッション</th><td>AT</td></tr>
  <tr><th>駆動方式</th><td>2WD</td></tr>
</table>
<div class="shopName">サンプルモータース</div>
<div class="shopAddress">東京都大田区1-2-3</div>
<div class="shopPhone">03-1234-5678</div>
</body></html>`

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	return New(translator.New(), "carsensor", 0.62, zap.NewNop())
}

func TestParseFullListing(t *testing.T) {
	p := newTestParser(t)

	listing, failure := p.Parse(listingHTML, listingURL, "AU123", listingURL)
	require.Nil(t, failure)
	require.NotNil(t, listing)

	assert.Equal(t, "carsensor", listing.Source)
	assert.Equal(t, "AU123", listing.ExternalID)
	assert.Equal(t, "Toyota", listing.Make)
	assert.Equal(t, "Puriusu", listing.Model)
	assert.Equal(t, 2011, listing.Year)
	assert.Equal(t, "Red", listing.Color)

	require.NotNil(t, listing.PriceJPY)
	assert.Equal(t, int64(800_000), *listing.PriceJPY)
	require.NotNil(t, listing.PriceRUB)
	assert.Equal(t, int64(496_000), *listing.PriceRUB)
	require.NotNil(t, listing.TotalPriceJPY)
	assert.Equal(t, int64(885_000), *listing.TotalPriceJPY)

	require.NotNil(t, listing.MileageKM)
	assert.Equal(t, int64(34_000), *listing.MileageKM)
	require.NotNil(t, listing.EngineCC)
	assert.Equal(t, int64(1800), *listing.EngineCC)

	require.NotNil(t, listing.Prefecture)
	assert.Equal(t, "東京都", *listing.Prefecture)
	require.NotNil(t, listing.Transmission)
	assert.Equal(t, "AT", *listing.Transmission)
	require.NotNil(t, listing.DriveType)
	assert.Equal(t, "2WD", *listing.DriveType)
	require.NotNil(t, listing.ShopPhone)
	assert.Equal(t, "03-1234-5678", *listing.ShopPhone)
}

func TestParseTotalBelowBaseDropsTotal(t *testing.T) {
	p := newTestParser(t)
	html := `<html><body>
<h1 class="title1">トヨタ プリウス</h1>
<p class="basePrice__price">80.0万円</p>
<p class="totalPrice__price">70.0万円</p>
<div class="specWrap__box"><p class="specWrap__box__title">年式</p><p class="specWrap__box__num">2011</p></div>
</body></html>`

	listing, failure := p.Parse(html, listingURL, "AU123", listingURL)
	require.Nil(t, failure)
	require.NotNil(t, listing.PriceJPY)
	assert.Equal(t, int64(800_000), *listing.PriceJPY)
	assert.Nil(t, listing.TotalPriceJPY)
}

func TestParseMissingYearFails(t *testing.T) {
	p := newTestParser(t)
	html := `<html><body>
<h1 class="title1">トヨタ プリウス</h1>
<p class="basePrice__price">80.0万円</p>
<div class="specWrap__box"><p class="specWrap__box__title">走行距離</p><p class="specWrap__box__num">3.4万km</p></div>
</body></html>`

	listing, failure := p.Parse(html, listingURL, "AU123", listingURL)
	assert.Nil(t, listing)
	require.NotNil(t, failure)
	assert.Equal(t, "missing_year", failure.ErrorType)
	assert.False(t, failure.Unavailable)
	assert.NotNil(t, failure.DebugSnippet)
}

func TestParseUnavailableListing(t *testing.T) {
	p := newTestParser(t)
	html := `<html><body><p>この車両の掲載は終了しました</p></body></html>`

	listing, failure := p.Parse(html, listingURL, "AU123", listingURL)
	assert.Nil(t, listing)
	require.NotNil(t, failure)
	assert.Equal(t, "listing_unavailable", failure.ErrorType)
	assert.True(t, failure.Unavailable)
}

func TestParseSearchRedirectIsUnavailable(t *testing.T) {
	p := newTestParser(t)

	listing, failure := p.Parse(listingHTML, listingURL, "AU123",
		"https://www.carsensor.net/usedcar/search.php?region=tokyo")
	assert.Nil(t, listing)
	require.NotNil(t, failure)
	assert.True(t, failure.Unavailable)
}

func TestParsePriceNotSpecified(t *testing.T) {
	p := newTestParser(t)
	html := `<html><body>
<h1 class="title1">トヨタ プリウス</h1>
<p class="basePrice__price">応談</p>
<div class="specWrap__box"><p class="specWrap__box__title">年式</p><p class="specWrap__box__num">2015</p></div>
</body></html>`

	listing, failure := p.Parse(html, listingURL, "AU123", listingURL)
	require.Nil(t, failure)
	assert.Nil(t, listing.PriceJPY)
	assert.Nil(t, listing.PriceRUB)
}

func TestQuickMake(t *testing.T) {
	p := newTestParser(t)

	assert.Equal(t, "Toyota", p.QuickMake(listingHTML))
	assert.Equal(t, "", p.QuickMake("<html><body><p>no title</p></body></html>"))
}

func TestSplitTitle(t *testing.T) {
	makeRaw, modelRaw, gradeRaw, colorRaw := splitTitle("トヨタ プリウス Sツーリングセレクション（レッド）")
	assert.Equal(t, "トヨタ", makeRaw)
	assert.Equal(t, "プリウス", modelRaw)
	assert.Equal(t, "Sツーリングセレクション", gradeRaw)
	assert.Equal(t, "レッド", colorRaw)
}
