package locale

import (
	"sort"
	"strconv"
	"strings"
)

// ExtractPrices scans free text for price figures and returns them sorted
// ascending. Persian digits are canonicalized and thousands separators
// stripped before maximal digit runs are parsed. Repeated figures stay as
// repeated entries; only the order is canonical. Text with no digits yields
// nil rather than an error.
func ExtractPrices(s string) []int {
	s = ToASCIIDigits(s)
	s = strings.NewReplacer(",", "", "٬", "").Replace(s)

	var prices []int
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if v, err := strconv.Atoi(s[start:i]); err == nil {
				prices = append(prices, v)
			}
			start = -1
		}
	}
	if start >= 0 {
		if v, err := strconv.Atoi(s[start:]); err == nil {
			prices = append(prices, v)
		}
	}

	sort.Ints(prices)
	return prices
}
