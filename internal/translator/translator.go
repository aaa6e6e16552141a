// Package translator maps Japanese listing terms to English. Dictionary
// lookups come first; anything unmapped degrades to phonetic
// romanization plus cleanup, never to an empty result when input exists.
package translator

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	cjkRe        = regexp.MustCompile(`[\x{3040}-\x{30ff}\x{3400}-\x{4dbf}\x{4e00}-\x{9fff}]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonWordRe    = regexp.MustCompile(`[^A-Za-z0-9\s\-/+]`)
	alnumRe      = regexp.MustCompile(`[^a-z0-9]+`)
	upperTokenRe = regexp.MustCompile(`^[A-Z0-9\-/+]+$`)
	digitAlphaRe = regexp.MustCompile(`([0-9])([A-Za-z])`)
	lowerUpperRe = regexp.MustCompile(`([a-z])([A-Z])`)
)

// Translator resolves makes, models and colors against immutable
// dictionary data.
type Translator struct {
	dict Dictionaries
}

// New returns a Translator with the built-in dictionaries.
func New() *Translator {
	return &Translator{dict: defaultDictionaries()}
}

// NewWithDictionaries returns a Translator over custom tables.
func NewWithDictionaries(dict Dictionaries) *Translator {
	return &Translator{dict: dict}
}

// TranslateMake resolves a make name. Unmapped values fall back to the
// cleaned romanization, or the normalized input when even that is empty.
func (t *Translator) TranslateMake(value string) string {
	normalized := normalizeText(value)
	if normalized == "" {
		return ""
	}
	if mapped, ok := t.dict.Makes[normalized]; ok {
		return mapped
	}
	if translated := t.translateGeneric(normalized); translated != "" {
		return translated
	}
	return normalized
}

// TranslateModel resolves a model or grade string.
func (t *Translator) TranslateModel(value string) string {
	return t.translateGeneric(normalizeText(value))
}

// TranslateColor resolves a color term, trying the exact dictionary, the
// compact-key romanized dictionary, token substitution and a few
// compound special cases before degrading to generic cleanup.
func (t *Translator) TranslateColor(value string) string {
	normalized := normalizeText(value)
	if normalized == "" {
		return ""
	}
	if mapped, ok := t.dict.Colors[normalized]; ok {
		return mapped
	}
	if mapped, ok := t.dict.RomanizedColors[compactKey(normalized)]; ok {
		return mapped
	}
	if phrase := t.romanizedColorPhrase(normalized); phrase != "" {
		return phrase
	}
	if compound := compoundColor(normalized); compound != "" {
		return compound
	}

	translated := t.translateGeneric(normalized)
	if translated == "" {
		return normalized
	}
	if mapped, ok := t.dict.RomanizedColors[compactKey(translated)]; ok {
		return mapped
	}
	if phrase := t.romanizedColorPhrase(translated); phrase != "" {
		return phrase
	}
	return translated
}

func (t *Translator) translateGeneric(normalized string) string {
	if normalized == "" {
		return ""
	}

	if cjkRe.MatchString(normalized) {
		normalized = romanize(normalized)
	}

	for _, rep := range t.dict.ModelReplacements {
		normalized = replaceFold(normalized, rep.From, rep.To)
	}

	normalized = cleanupASCII(normalized)
	if normalized == "" {
		return ""
	}
	return t.titleOrUpperWords(normalized)
}

// romanizedColorPhrase substitutes recognized romanized color syllables
// and accepts the result only when a known English color keyword
// survives the substitution.
func (t *Translator) romanizedColorPhrase(value string) string {
	text := strings.ToLower(value)
	for _, rep := range t.dict.ColorTokens {
		text = strings.ReplaceAll(text, rep.From, " "+strings.ToLower(rep.To)+" ")
	}
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if text == "" {
		return ""
	}

	recognized := false
	for _, word := range strings.Split(text, " ") {
		if _, ok := t.dict.ColorKeywords[word]; ok {
			recognized = true
			break
		}
	}
	if !recognized {
		return ""
	}
	return t.titleOrUpperWords(text)
}

func (t *Translator) titleOrUpperWords(value string) string {
	words := make([]string, 0, 4)
	for _, token := range strings.Split(value, " ") {
		if token == "" {
			continue
		}
		if upperTokenRe.MatchString(token) {
			words = append(words, token)
			continue
		}
		if _, ok := t.dict.Acronyms[strings.ToUpper(token)]; ok {
			words = append(words, strings.ToUpper(token))
			continue
		}
		words = append(words, capitalize(token))
	}
	return strings.Join(words, " ")
}

// compoundColor covers Japanese compound color terms the dictionaries
// miss as exact keys.
func compoundColor(normalized string) string {
	pairs := []struct {
		a, b, out string
	}{
		{"グレー", "メタリック", "Gray Metallic"},
		{"シルバー", "メタリック", "Silver Metallic"},
		{"ブルー", "メタリック", "Blue Metallic"},
		{"レッド", "メタリック", "Red Metallic"},
		{"ブラック", "メタリック", "Black Metallic"},
		{"ライト", "ブルー", "Light Blue"},
		{"パール", "ホワイト", "Pearl White"},
	}
	for _, p := range pairs {
		if strings.Contains(normalized, p.a) && strings.Contains(normalized, p.b) {
			return p.out
		}
	}
	return ""
}

func normalizeText(value string) string {
	text := norm.NFKC.String(value)
	text = strings.ReplaceAll(text, " ", " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func cleanupASCII(value string) string {
	text := nonWordRe.ReplaceAllString(value, " ")
	text = digitAlphaRe.ReplaceAllString(text, "$1 $2")
	text = lowerUpperRe.ReplaceAllString(text, "$1 $2")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func compactKey(value string) string {
	return alnumRe.ReplaceAllString(strings.ToLower(value), "")
}

func capitalize(token string) string {
	runes := []rune(strings.ToLower(token))
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// replaceFold is a case-insensitive ReplaceAll for ASCII needles.
func replaceFold(s, from, to string) string {
	lower := strings.ToLower(s)
	needle := strings.ToLower(from)
	var out strings.Builder
	for {
		idx := strings.Index(lower, needle)
		if idx < 0 {
			out.WriteString(s)
			return out.String()
		}
		out.WriteString(s[:idx])
		out.WriteString(to)
		s = s[idx+len(from):]
		lower = lower[idx+len(needle):]
	}
}
