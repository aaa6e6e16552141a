package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManyenToJPY(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"80.0万円", 800_000},
		{"88.5万円", 885_000},
		{"123万円", 1_230_000},
		{"1,234万円", 12_340_000},
		{"3.4万", 34_000},
	}
	for _, tc := range cases {
		got := parseManyenToJPY(tc.input)
		require.NotNil(t, got, "parseManyenToJPY(%s)", tc.input)
		assert.Equal(t, tc.want, *got, "parseManyenToJPY(%s)", tc.input)
	}

	assert.Nil(t, parseManyenToJPY("応談"))
	assert.Nil(t, parseManyenToJPY(""))
}

func TestParseNumericContentToJPY(t *testing.T) {
	got := parseNumericContentToJPY("800000")
	require.NotNil(t, got)
	assert.Equal(t, int64(800_000), *got)

	// Values below one manyen are treated as manyen units.
	got = parseNumericContentToJPY("80")
	require.NotNil(t, got)
	assert.Equal(t, int64(800_000), *got)

	assert.Nil(t, parseNumericContentToJPY("not-a-number"))
}

func TestSanitizePriceJPY(t *testing.T) {
	got := sanitizePriceJPY(800_000)
	require.NotNil(t, got)
	assert.Equal(t, int64(800_000), *got)

	// Sentinels and the not-specified ceiling collapse to nil.
	assert.Nil(t, sanitizePriceJPY(99_999_999))
	assert.Nil(t, sanitizePriceJPY(999_999_999))
	assert.Nil(t, sanitizePriceJPY(90_000_000))
	assert.Nil(t, sanitizePriceJPY(0))
	assert.Nil(t, sanitizePriceJPY(-100))
}

func TestSanitizePriceJPYIdempotent(t *testing.T) {
	for _, v := range []int64{1, 500_000, 89_999_999} {
		first := sanitizePriceJPY(v)
		require.NotNil(t, first)
		second := sanitizePriceJPY(*first)
		require.NotNil(t, second)
		assert.Equal(t, *first, *second)
	}
}

func TestParseMileageKM(t *testing.T) {
	got := parseMileageKM("3.4万km")
	require.NotNil(t, got)
	assert.Equal(t, int64(34_000), *got)

	got = parseMileageKM("45000km")
	require.NotNil(t, got)
	assert.Equal(t, int64(45_000), *got)

	assert.Nil(t, parseMileageKM(""))
	assert.Nil(t, parseMileageKM("不明"))
}
