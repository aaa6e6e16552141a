package translator

// Dictionary data for translating carsensor listing text. Injected into
// the Translator at construction so there is no shared mutable state.

type tokenReplacement struct {
	From string
	To   string
}

// Dictionaries bundles every lookup table the Translator consults.
type Dictionaries struct {
	Makes             map[string]string
	Colors            map[string]string
	RomanizedColors   map[string]string
	ColorTokens       []tokenReplacement
	ColorKeywords     map[string]struct{}
	ModelReplacements []tokenReplacement
	Acronyms          map[string]struct{}
}

func defaultDictionaries() Dictionaries {
	return Dictionaries{
		Makes:             makeMap,
		Colors:            colorMap,
		RomanizedColors:   romanizedColorMap,
		ColorTokens:       romanizedColorTokens,
		ColorKeywords:     englishColorKeywords,
		ModelReplacements: modelReplacements,
		Acronyms:          acronyms,
	}
}

var makeMap = map[string]string{
	"トヨタ":          "Toyota",
	"日産":           "Nissan",
	"ホンダ":          "Honda",
	"マツダ":          "Mazda",
	"スバル":          "Subaru",
	"三菱":           "Mitsubishi",
	"スズキ":          "Suzuki",
	"ダイハツ":         "Daihatsu",
	"レクサス":         "Lexus",
	"アウディ":         "Audi",
	"BMW":          "BMW",
	"メルセデス・ベンツ":    "Mercedes-Benz",
	"ポルシェ":         "Porsche",
	"フォルクスワーゲン":    "Volkswagen",
	"ボルボ":          "Volvo",
	"シトロエン":        "Citroen",
	"プジョー":         "Peugeot",
	"ルノー":          "Renault",
	"ジャガー":         "Jaguar",
	"ランドローバー":      "Land Rover",
	"フィアット":        "Fiat",
	"アバルト":         "Abarth",
	"ジープ":          "Jeep",
	"フォード":         "Ford",
	"シボレー":         "Chevrolet",
	"クライスラー":       "Chrysler",
	"テスラ":          "Tesla",
}

var colorMap = map[string]string{
	"レッド":                  "Red",
	"ブルー":                  "Blue",
	"ホワイト":                 "White",
	"ブラック":                 "Black",
	"シルバー":                 "Silver",
	"グレー":                  "Gray",
	"ガンメタ":                 "Gunmetal",
	"ガンメタリック":              "Gunmetal Metallic",
	"パール":                  "Pearl",
	"ワインレッド":               "Wine Red",
	"ネイビー":                 "Navy",
	"グリーン":                 "Green",
	"イエロー":                 "Yellow",
	"オレンジ":                 "Orange",
	"ブラウン":                 "Brown",
	"ベージュ":                 "Beige",
	"ゴールド":                 "Gold",
	"ピンク":                  "Pink",
	"紫":                    "Purple",
	"ライトブルー":               "Light Blue",
	"ダークブルー":               "Dark Blue",
	"パールホワイト":              "Pearl White",
	"ホワイトパール":              "Pearl White",
	"ブルックリングレーメタリック":       "Brooklyn Gray Metallic",
	"ホワイトノーヴァガラスフレーク":      "White Nova Glass Flake",
	"ホワイトノヴァガラスフレーク":       "White Nova Glass Flake",
	"グレーメタリック":             "Gray Metallic",
	"シルバーメタリック":            "Silver Metallic",
	"レッドメタリック":             "Red Metallic",
	"ブルーメタリック":             "Blue Metallic",
	"ブラックメタリック":            "Black Metallic",
}

// Keys are compacted romanizations (lowercase, alphanumerics only),
// covering the spelling drift kana romanization produces.
var romanizedColorMap = map[string]string{
	"howaitonoovuagarasufureeku": "White Nova Glass Flake",
	"howaitonovuagarasufureeku":  "White Nova Glass Flake",
	"howaitonovagarasufureeku":   "White Nova Glass Flake",
	"howaitonovagarasufureku":    "White Nova Glass Flake",
	"burukkuringureemetarikku":   "Brooklyn Gray Metallic",
	"buruukkuringureemetarikku":  "Brooklyn Gray Metallic",
}

// Ordered: longer syllable runs must be substituted before their prefixes.
var romanizedColorTokens = []tokenReplacement{
	{"shainingu", "Shining"},
	{"metarikku", "Metallic"},
	{"howaito", "White"},
	{"burakku", "Black"},
	{"buruu", "Blue"},
	{"guree", "Gray"},
	{"guriin", "Green"},
	{"gurin", "Green"},
	{"reddo", "Red"},
	{"orenji", "Orange"},
	{"beju", "Beige"},
	{"beeju", "Beige"},
	{"shirubaa", "Silver"},
	{"shiruba", "Silver"},
	{"paaru", "Pearl"},
	{"arupin", "Alpine"},
}

var englishColorKeywords = map[string]struct{}{
	"white":    {},
	"black":    {},
	"blue":     {},
	"gray":     {},
	"green":    {},
	"red":      {},
	"orange":   {},
	"beige":    {},
	"silver":   {},
	"pearl":    {},
	"metallic": {},
}

var modelReplacements = []tokenReplacement{
	{"shiriizu", "Series"},
	{"shirizu", "Series"},
	{"supootsu", "Sports"},
}

var acronyms = map[string]struct{}{
	"BMW": {},
	"GT":  {},
	"AMG": {},
	"SUV": {},
	"WRX": {},
}
