package translator

import "strings"

// Hepburn romanization for kana. Long vowels are written doubled
// ("buruu", "shirubaa") so the output lines up with the compact keys in
// the romanized color dictionaries. Kanji and other non-kana runes pass
// through untouched and are handled by the ASCII cleanup afterwards.

var kanaDigraphs = map[string]string{
	"キャ": "kya", "キュ": "kyu", "キョ": "kyo",
	"ギャ": "gya", "ギュ": "gyu", "ギョ": "gyo",
	"シャ": "sha", "シュ": "shu", "ショ": "sho", "シェ": "she",
	"ジャ": "ja", "ジュ": "ju", "ジョ": "jo", "ジェ": "je",
	"チャ": "cha", "チュ": "chu", "チョ": "cho", "チェ": "che",
	"ニャ": "nya", "ニュ": "nyu", "ニョ": "nyo",
	"ヒャ": "hya", "ヒュ": "hyu", "ヒョ": "hyo",
	"ビャ": "bya", "ビュ": "byu", "ビョ": "byo",
	"ピャ": "pya", "ピュ": "pyu", "ピョ": "pyo",
	"ミャ": "mya", "ミュ": "myu", "ミョ": "myo",
	"リャ": "rya", "リュ": "ryu", "リョ": "ryo",
	"ファ": "fa", "フィ": "fi", "フェ": "fe", "フォ": "fo",
	"ヴァ": "va", "ヴィ": "vi", "ヴェ": "ve", "ヴォ": "vo",
	"ウィ": "wi", "ウェ": "we", "ウォ": "wo",
	"ティ": "ti", "トゥ": "tu", "テュ": "tyu",
	"ディ": "di", "ドゥ": "du", "デュ": "dyu",
}

var kanaSingles = map[rune]string{
	'ア': "a", 'イ': "i", 'ウ': "u", 'エ': "e", 'オ': "o",
	'カ': "ka", 'キ': "ki", 'ク': "ku", 'ケ': "ke", 'コ': "ko",
	'サ': "sa", 'シ': "shi", 'ス': "su", 'セ': "se", 'ソ': "so",
	'タ': "ta", 'チ': "chi", 'ツ': "tsu", 'テ': "te", 'ト': "to",
	'ナ': "na", 'ニ': "ni", 'ヌ': "nu", 'ネ': "ne", 'ノ': "no",
	'ハ': "ha", 'ヒ': "hi", 'フ': "fu", 'ヘ': "he", 'ホ': "ho",
	'マ': "ma", 'ミ': "mi", 'ム': "mu", 'メ': "me", 'モ': "mo",
	'ヤ': "ya", 'ユ': "yu", 'ヨ': "yo",
	'ラ': "ra", 'リ': "ri", 'ル': "ru", 'レ': "re", 'ロ': "ro",
	'ワ': "wa", 'ヲ': "wo", 'ン': "n",
	'ガ': "ga", 'ギ': "gi", 'グ': "gu", 'ゲ': "ge", 'ゴ': "go",
	'ザ': "za", 'ジ': "ji", 'ズ': "zu", 'ゼ': "ze", 'ゾ': "zo",
	'ダ': "da", 'ヂ': "ji", 'ヅ': "zu", 'デ': "de", 'ド': "do",
	'バ': "ba", 'ビ': "bi", 'ブ': "bu", 'ベ': "be", 'ボ': "bo",
	'パ': "pa", 'ピ': "pi", 'プ': "pu", 'ペ': "pe", 'ポ': "po",
	'ヴ': "vu",
	'ァ': "a", 'ィ': "i", 'ゥ': "u", 'ェ': "e", 'ォ': "o",
	'ャ': "ya", 'ュ': "yu", 'ョ': "yo",
}

func romanize(value string) string {
	runes := []rune(toKatakana(value))

	var out strings.Builder
	geminate := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == 'ッ' {
			geminate = true
			continue
		}
		if r == 'ー' {
			if v := lastVowel(out.String()); v != 0 {
				out.WriteRune(v)
			}
			continue
		}

		syllable := ""
		if i+1 < len(runes) {
			if s, ok := kanaDigraphs[string(runes[i:i+2])]; ok {
				syllable = s
				i++
			}
		}
		if syllable == "" {
			if s, ok := kanaSingles[r]; ok {
				syllable = s
			}
		}

		if syllable == "" {
			geminate = false
			out.WriteRune(r)
			continue
		}
		if geminate {
			geminate = false
			out.WriteByte(syllable[0])
		}
		out.WriteString(syllable)
	}
	return out.String()
}

// toKatakana shifts hiragana into the katakana block so one table
// covers both scripts.
func toKatakana(value string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ぁ' && r <= 'ゖ' {
			return r + ('ァ' - 'ぁ')
		}
		return r
	}, value)
}

func lastVowel(s string) rune {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case 'a', 'i', 'u', 'e', 'o':
			return rune(s[i])
		}
	}
	return 0
}
