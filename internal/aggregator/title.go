package aggregator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// emoji holds the pictograph blocks stripped from titles. CJK and other
// letters between U+24C2 and U+1F170 are deliberately not included.
var emoji = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x24C2, Hi: 0x24C2, Stride: 1}, // circled M
		{Lo: 0x2702, Hi: 0x27B0, Stride: 1}, // dingbats
		{Lo: 0xFE0F, Hi: 0xFE0F, Stride: 1}, // emoji presentation selector
	},
	R32: []unicode.Range32{
		{Lo: 0x1F170, Hi: 0x1F251, Stride: 1}, // enclosed alphanumerics and ideographs
		{Lo: 0x1F300, Hi: 0x1F64F, Stride: 1}, // pictographs, emoticons
		{Lo: 0x1F680, Hi: 0x1FAFF, Stride: 1}, // transport through pictographs extended-A
	},
}

var stripEmoji = runes.Remove(runes.In(emoji))

// NormalizeTitle removes emoji, lower-cases the title and capitalizes only
// its first letter.
func NormalizeTitle(title string) string {
	stripped, _, err := transform.String(stripEmoji, title)
	if err != nil {
		stripped = title
	}
	stripped = strings.Join(strings.Fields(stripped), " ")
	if stripped == "" {
		return ""
	}

	lower := cases.Lower(language.Und).String(stripped)
	first, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(first)) + lower[size:]
}
