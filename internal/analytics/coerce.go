package analytics

import (
	"strings"

	"github.com/sells-group/pedidos-cli/internal/dataset"
)

// StatusSettled is the order status that counts as billed.
const StatusSettled = "faturado"

// freeShippingTokens are the lower-cased flag values that mean "yes".
var freeShippingTokens = map[string]bool{
	"sim":  true,
	"s":    true,
	"true": true,
	"1":    true,
}

// ParseNumber parses a cell as a finite number.
func ParseNumber(s string) (float64, bool) {
	return dataset.ParseNumber(s)
}

// CoerceFloat parses a cell as a number, returning 0 for anything that is
// not one. It never fails.
func CoerceFloat(s string) float64 {
	f, _ := ParseNumber(s)
	return f
}

// IsSettled reports whether an order status means the order was billed.
func IsSettled(status string) bool {
	return strings.ToLower(status) == StatusSettled
}

// IsFreeShipping reports whether a free-shipping flag is set. Only the exact
// tokens sim, s, true and 1 (any case) count.
func IsFreeShipping(flag string) bool {
	return freeShippingTokens[strings.ToLower(flag)]
}
