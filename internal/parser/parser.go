// Package parser extracts normalized listing records from carsensor
// detail-page markup. Extraction is multi-strategy: most fields tolerate
// several markup shapes, and only the model year is mandatory.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"carscout/internal/domain"
	"carscout/internal/translator"
)

const (
	yearLabel         = "年式"
	colorLabel        = "色"
	mileageLabel      = "走行距離"
	regionLabel       = "地域"
	shopLabel         = "販売店"
	addressLabel      = "住所"
	phoneLabel        = "電話番号"
	transmissionLabel = "ミッション"
	transmissionAlt   = "AT/CVT"
	driveLabel        = "駆動方式"
	driveAlt          = "駆動"
	engineCCLabel     = "排気量"
	fuelLabel         = "燃料"
	steeringLabel     = "ハンドル"
	bodyTypeLabel     = "ボディタイプ"
)

// Phrases the site shows once a listing has ended or been sold.
var unavailableMarkers = []string{
	"掲載終了",
	"この車両は",
	"この車両の掲載は終了しました",
	"販売終了",
	"成約済み",
	"Listing appears unavailable",
}

const searchRedirectPath = "/usedcar/search.php"

const debugSnippetLimit = 800

var (
	yearRe       = regexp.MustCompile(`(19\d{2}|20\d{2})`)
	parenColorRe = regexp.MustCompile(`[（(]\s*([^()（）]+)\s*[）)]`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// Parser turns detail-page HTML into ParsedListing records.
type Parser struct {
	tr     *translator.Translator
	source string
	rate   float64
	logger *zap.Logger
}

func New(tr *translator.Translator, source string, jpyToRUBRate float64, logger *zap.Logger) *Parser {
	return &Parser{tr: tr, source: source, rate: jpyToRUBRate, logger: logger}
}

// Parse extracts a listing from html. Exactly one of the returns is
// non-nil: a failure either means the listing is gone (Unavailable) or
// that a mandatory field could not be recovered.
func (p *Parser) Parse(html, url, externalID, finalURL string) (*domain.ParsedListing, *domain.ParseFailure) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, p.failure(url, externalID, "html_invalid", err.Error(), html, false)
	}

	if p.listingUnavailable(doc, finalURL) {
		return nil, p.failure(url, externalID, "listing_unavailable", "Listing appears unavailable", html, true)
	}

	labels := extractLabelMap(doc)

	titleText := titleText(doc)
	makeRaw, modelRaw, gradeRaw, colorFromTitle := splitTitle(titleText)

	make := p.tr.TranslateMake(makeRaw)
	model := p.tr.TranslateModel(modelRaw)
	grade := p.tr.TranslateModel(gradeRaw)

	colorRaw := labels[colorLabel]
	if colorRaw == "" {
		colorRaw = colorFromTitle
	}
	color := p.tr.TranslateColor(colorRaw)

	year, foundTitles := p.extractYear(doc, url)
	if year == 0 {
		msg := "Missing year; found spec titles: " + strings.Join(foundTitles, ", ")
		return nil, p.failure(url, externalID, "missing_year", msg, html, false)
	}

	priceJPY, priceError := p.parseBasePrice(doc, url)
	totalPriceJPY := p.parseTotalPrice(doc)
	if priceJPY != nil && totalPriceJPY != nil && *totalPriceJPY < *priceJPY {
		p.logger.Warn("total price below base price, dropping total",
			zap.String("url", url),
			zap.Int64("total_jpy", *totalPriceJPY),
			zap.Int64("base_jpy", *priceJPY))
		totalPriceJPY = nil
	}
	if priceJPY == nil && totalPriceJPY == nil {
		cause := priceError
		if cause == "" {
			cause = "unknown"
		}
		p.logger.Info("price not specified", zap.String("url", url), zap.String("cause", cause))
	}

	listing := &domain.ParsedListing{
		Source:     p.source,
		ExternalID: externalID,
		URL:        url,

		Make:  orUnknown(make),
		Model: orUnknown(model),
		Grade: strPtr(grade),
		Color: orUnknown(color),
		Year:  year,

		PriceJPY:      priceJPY,
		PriceRUB:      p.toRUB(priceJPY),
		TotalPriceJPY: totalPriceJPY,
		TotalPriceRUB: p.toRUB(totalPriceJPY),

		MileageKM: parseMileageKM(labels[mileageLabel]),

		Prefecture:  strPtr(labels[regionLabel]),
		ShopName:    strPtr(firstOf(labels[shopLabel], nodeText(doc.Find(".shopName").First()))),
		ShopAddress: strPtr(firstOf(labels[addressLabel], nodeText(doc.Find(".shopAddress").First()))),
		ShopPhone:   strPtr(firstOf(labels[phoneLabel], nodeText(doc.Find(".shopPhone").First()))),

		Transmission: strPtr(firstOf(labels[transmissionLabel], labels[transmissionAlt])),
		DriveType:    strPtr(firstOf(labels[driveLabel], labels[driveAlt])),
		EngineCC:     toIntDigits(labels[engineCCLabel]),
		Fuel:         strPtr(labels[fuelLabel]),
		Steering:     strPtr(labels[steeringLabel]),
		BodyType:     strPtr(labels[bodyTypeLabel]),

		ScrapedAt: time.Now().UTC(),
	}
	return listing, nil
}

// QuickMake is the cheap title-only extraction used by the candidate
// selector. Returns the translated make, or "" when the title gives none.
func (p *Parser) QuickMake(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	makeRaw, _, _, _ := splitTitle(titleText(doc))
	return p.tr.TranslateMake(makeRaw)
}

func (p *Parser) listingUnavailable(doc *goquery.Document, finalURL string) bool {
	if strings.Contains(finalURL, searchRedirectPath) {
		return true
	}
	text := cleanText(doc.Text())
	for _, marker := range unavailableMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// extractYear only trusts the spec boxes: the year is mandatory and a
// page-wide regex would happily pick up unrelated four-digit numbers.
func (p *Parser) extractYear(doc *goquery.Document, url string) (int, []string) {
	var foundTitles []string
	year := 0

	doc.Find("div.specWrap__box").EachWithBreak(func(_ int, box *goquery.Selection) bool {
		title := nodeText(box.Find("p.specWrap__box__title").First())
		foundTitles = append(foundTitles, title)
		if !strings.Contains(title, yearLabel) {
			return true
		}

		raw := nodeText(box.Find("p.specWrap__box__num").First())
		if raw == "" {
			p.logger.Warn("year block found but value missing", zap.String("url", url))
			return false
		}
		match := yearRe.FindStringSubmatch(raw)
		if match == nil {
			p.logger.Warn("failed to parse year",
				zap.String("url", url), zap.String("raw", raw))
			return false
		}
		parsed, err := strconv.Atoi(match[1])
		if err != nil {
			return false
		}
		year = parsed
		return false
	})

	if year == 0 {
		p.logger.Warn("year not found",
			zap.String("url", url), zap.Strings("spec_titles", foundTitles))
	}
	return year, foundTitles
}

func (p *Parser) parseBasePrice(doc *goquery.Document, url string) (*int64, string) {
	tag := doc.Find("p.basePrice__price").First()
	if tag.Length() == 0 {
		p.logger.Warn("price tag missing", zap.String("url", url))
		return nil, "price_tag_missing"
	}

	text := priceTextReplacer.Replace(tag.Text())
	if text != "" {
		if hasNotSpecifiedMarker(text) {
			return nil, "price_not_specified"
		}
		if jpy := parseManyenToJPY(text); jpy != nil {
			return jpy, ""
		}
	}

	if content, ok := tag.Attr("content"); ok && content != "" {
		if jpy := parseNumericContentToJPY(content); jpy != nil {
			return jpy, ""
		}
		p.logger.Warn("failed to parse base price content attribute",
			zap.String("url", url), zap.String("content", content))
	} else {
		p.logger.Warn("price content attribute missing", zap.String("url", url))
	}

	if text != "" {
		if digits := toIntDigits(text); digits != nil {
			jpy := *digits
			if jpy < manyenMultiplier {
				jpy *= manyenMultiplier
			}
			if sanitized := sanitizePriceJPY(jpy); sanitized != nil {
				return sanitized, ""
			}
		}
	}
	return nil, "price_content_missing_or_invalid"
}

func (p *Parser) parseTotalPrice(doc *goquery.Document) *int64 {
	tag := doc.Find("p.totalPrice__price").First()
	if tag.Length() == 0 {
		return nil
	}

	text := priceTextReplacer.Replace(tag.Text())
	if text != "" {
		if hasNotSpecifiedMarker(text) {
			return nil
		}
		if jpy := parseManyenToJPY(text); jpy != nil {
			return jpy
		}
	}

	if content, ok := tag.Attr("content"); ok && content != "" {
		if jpy := parseNumericContentToJPY(content); jpy != nil {
			return jpy
		}
	}

	if text == "" {
		return nil
	}
	digits := toIntDigits(text)
	if digits == nil {
		return nil
	}
	jpy := *digits
	if jpy < manyenMultiplier {
		jpy *= manyenMultiplier
	}
	return sanitizePriceJPY(jpy)
}

func (p *Parser) toRUB(jpy *int64) *int64 {
	if jpy == nil {
		return nil
	}
	rub := int64(math.Round(float64(*jpy) * p.rate))
	return &rub
}

func (p *Parser) failure(url, externalID, errorType, message, html string, unavailable bool) *domain.ParseFailure {
	snippet := html
	if len(snippet) > debugSnippetLimit {
		snippet = snippet[:debugSnippetLimit]
		for len(snippet) > 0 && !utf8.ValidString(snippet) {
			snippet = snippet[:len(snippet)-1]
		}
	}
	return &domain.ParseFailure{
		URL:          url,
		ExternalID:   externalID,
		ErrorType:    errorType,
		Message:      message,
		DebugSnippet: strPtr(snippet),
		Unavailable:  unavailable,
		CreatedAt:    time.Now().UTC(),
	}
}

// extractLabelMap flattens the page's spec labels into key→value,
// scanning the three markup shapes the site uses. First match per label
// wins.
func extractLabelMap(doc *goquery.Document) map[string]string {
	labels := make(map[string]string)

	put := func(key, value string) {
		if key == "" || value == "" {
			return
		}
		if _, exists := labels[key]; !exists {
			labels[key] = value
		}
	}

	doc.Find("div.specWrap__box").Each(func(_ int, box *goquery.Selection) {
		put(nodeText(box.Find("p.specWrap__box__title").First()),
			nodeText(box.Find("p.specWrap__box__num").First()))
	})

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		put(nodeText(row.Find("th").First()), nodeText(row.Find("td").First()))
	})

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dts := dl.Find("dt")
		dds := dl.Find("dd")
		n := dts.Length()
		if dds.Length() < n {
			n = dds.Length()
		}
		for i := 0; i < n; i++ {
			put(nodeText(dts.Eq(i)), nodeText(dds.Eq(i)))
		}
	})

	return labels
}

func titleText(doc *goquery.Document) string {
	if text := nodeText(doc.Find("h1.title1").First()); text != "" {
		return text
	}
	return nodeText(doc.Find("h1").First())
}

// splitTitle breaks an H1 title into make / model / grade, pulling a
// trailing parenthesized color term out first.
func splitTitle(title string) (makeRaw, modelRaw, gradeRaw, colorRaw string) {
	text := cleanText(title)
	if text == "" {
		return "", "", "", ""
	}

	if match := parenColorRe.FindStringSubmatch(text); match != nil {
		colorRaw = cleanText(match[1])
	}
	text = strings.TrimSpace(parenColorRe.ReplaceAllString(text, ""))

	parts := strings.Fields(text)
	if len(parts) >= 1 {
		makeRaw = parts[0]
	}
	if len(parts) >= 2 {
		modelRaw = parts[1]
	}
	if len(parts) >= 3 {
		gradeRaw = strings.Join(parts[2:], " ")
	}
	return makeRaw, modelRaw, gradeRaw, colorRaw
}

func nodeText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return cleanText(sel.Text())
}

func cleanText(value string) string {
	text := strings.ReplaceAll(value, " ", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
