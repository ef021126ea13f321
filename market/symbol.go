// Package market normalises ticker symbols and maps them to broker
// contract identifiers.
package market

import (
	"strings"
	"unicode"
)

// FormatSymbol strips whitespace and '/' from a ticker and upper-cases it,
// so "btc/usd " and "BTCUSD" name the same instrument.
func FormatSymbol(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '/' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// IsCryptoPair reports whether a formatted symbol looks like a USD or USDT
// quoted crypto pair.
func IsCryptoPair(symbol string) bool {
	return strings.HasSuffix(symbol, "USD") || strings.HasSuffix(symbol, "USDT")
}
