// Package locale converts source-locale text (Persian digits, Jalali dates,
// free-text price ranges) into canonical values. All functions are pure.
package locale

import "strings"

// persianZero is the first of the ten contiguous Persian numeral code points
// (U+06F0 .. U+06F9).
const persianZero = '۰'

// ToASCIIDigits replaces Persian numeral glyphs with their ASCII digit
// equivalents. Every other rune passes through unchanged.
func ToASCIIDigits(s string) string {
	if !strings.ContainsFunc(s, isPersianDigit) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isPersianDigit(r) {
			return '0' + (r - persianZero)
		}
		return r
	}, s)
}

func isPersianDigit(r rune) bool {
	return r >= persianZero && r <= persianZero+9
}
