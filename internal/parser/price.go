package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Manyen is the Japanese 10,000-yen display unit. A value shown as
// "80.0万円" is 800,000 JPY.
const manyenMultiplier = 10_000

// Anything at or above this is the site's way of saying "price not
// specified"; known sentinel values get the same treatment.
const priceNotSpecifiedThresholdJPY = 90_000_000

var invalidPriceJPYValues = map[int64]struct{}{
	99_999_999:  {},
	999_999_999: {},
}

var priceNotSpecifiedMarkers = []string{
	"応談",
	"価格応談",
	"要相談",
	"要問合せ",
	"ASK",
	"TBD",
}

var (
	digitsRe        = regexp.MustCompile(`\d+`)
	priceManyenRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*万`)
	mileageManyenRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*万\s*km`)
)

var priceTextReplacer = strings.NewReplacer(
	"，", "",
	",", "",
	"．", ".",
	" ", "",
	" ", "",
)

// toIntDigits concatenates every digit run in value. Returns nil when
// the text carries no digits.
func toIntDigits(value string) *int64 {
	if value == "" {
		return nil
	}
	digits := strings.Join(digitsRe.FindAllString(value, -1), "")
	if digits == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// parseManyenToJPY reads a manyen-unit display value ("80.0万円") into
// sanitized yen.
func parseManyenToJPY(value string) *int64 {
	if value == "" {
		return nil
	}
	normalized := priceTextReplacer.Replace(value)
	match := priceManyenRe.FindStringSubmatch(normalized)
	if match == nil {
		return nil
	}
	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	jpy := int64(amount*manyenMultiplier + 0.5)
	return sanitizePriceJPY(jpy)
}

// parseNumericContentToJPY reads the machine-readable content attribute.
// Values below 10,000 are manyen-units and get scaled.
func parseNumericContentToJPY(content string) *int64 {
	parsed := toIntDigits(priceTextReplacer.Replace(content))
	if parsed == nil {
		return nil
	}
	jpy := *parsed
	if jpy < manyenMultiplier {
		jpy *= manyenMultiplier
	}
	return sanitizePriceJPY(jpy)
}

// sanitizePriceJPY drops non-positive, sentinel and implausibly large
// values. Idempotent: sanitized output sanitizes to itself.
func sanitizePriceJPY(value int64) *int64 {
	if value <= 0 {
		return nil
	}
	if _, bad := invalidPriceJPYValues[value]; bad {
		return nil
	}
	if value >= priceNotSpecifiedThresholdJPY {
		return nil
	}
	return &value
}

func parseMileageKM(value string) *int64 {
	if value == "" {
		return nil
	}
	text := strings.ReplaceAll(strings.ReplaceAll(value, "，", ""), ",", "")
	if match := mileageManyenRe.FindStringSubmatch(text); match != nil {
		amount, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return nil
		}
		km := int64(amount*manyenMultiplier + 0.5)
		return &km
	}
	return toIntDigits(text)
}

func hasNotSpecifiedMarker(text string) bool {
	upper := strings.ToUpper(text)
	for _, marker := range priceNotSpecifiedMarkers {
		if strings.Contains(text, marker) || strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
