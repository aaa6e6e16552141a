package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRomanize(t *testing.T) {
	cases := map[string]string{
		"ホワイト":   "howaito",
		"ブルー":    "buruu",
		"グレー":    "guree",
		"シルバー":   "shirubaa",
		"メタリック":  "metarikku",
		"レッド":    "reddo",
		"グリーン":   "guriin",
		"シャイニング": "shainingu",
		"プリウス":   "puriusu",
	}
	for input, want := range cases {
		assert.Equal(t, want, romanize(input), "romanize(%s)", input)
	}
}

func TestTranslateMake(t *testing.T) {
	tr := New()

	assert.Equal(t, "Toyota", tr.TranslateMake("トヨタ"))
	assert.Equal(t, "Nissan", tr.TranslateMake("日産"))
	// Already-English values pass through untouched.
	assert.Equal(t, "BMW", tr.TranslateMake("BMW"))
	// Whitespace and width variants normalize before lookup.
	assert.Equal(t, "Toyota", tr.TranslateMake("  トヨタ "))
}

func TestTranslateModelRomanizesUnknownKana(t *testing.T) {
	tr := New()

	assert.Equal(t, "Puriusu", tr.TranslateModel("プリウス"))
	assert.Equal(t, "Fit", tr.TranslateModel("Fit"))
	assert.Equal(t, "", tr.TranslateModel(""))
}

func TestTranslateColor(t *testing.T) {
	tr := New()

	assert.Equal(t, "Red", tr.TranslateColor("レッド"))
	assert.Equal(t, "Pearl White", tr.TranslateColor("パールホワイト"))
	assert.Equal(t, "Red Metallic", tr.TranslateColor("レッドメタリック"))
	// English input is passed through.
	assert.Equal(t, "Silver", tr.TranslateColor("Silver"))
}

func TestTranslateColorRomanizedPhrase(t *testing.T) {
	tr := New()

	// Not in the exact dictionary: falls back to token-wise romanized
	// replacement.
	got := tr.TranslateColor("シャイニングホワイト")
	assert.Contains(t, got, "White")
	assert.NotContains(t, got, "howaito")
}
