// Package render writes answers, KPIs and tables for terminals (aligned text)
// and for machines (JSON, YAML). Numbers in text output use Brazilian
// Portuguese formatting.
package render

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// unavailable stands in for a value that could not be computed.
const unavailable = "n/d"

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Money formats v as "R$ 1.234,56".
func Money(v float64) string {
	if !finite(v) {
		return "R$ " + unavailable
	}
	return printer.Sprintf("R$ %.2f", v)
}

// Percent formats v (already multiplied by 100) as "12,3%".
func Percent(v float64) string {
	if !finite(v) {
		return unavailable
	}
	return printer.Sprintf("%.1f%%", v)
}

// Decimal formats v with two decimals and thousands grouping.
func Decimal(v float64) string {
	if !finite(v) {
		return unavailable
	}
	return printer.Sprintf("%.2f", v)
}

// Integer formats n with thousands grouping.
func Integer(n int) string {
	return printer.Sprintf("%d", n)
}

// Cell formats a result value for text output.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "(vazio)"
	case float64:
		if x == math.Trunc(x) && finite(x) && math.Abs(x) < 1e15 {
			return Integer(int(x))
		}
		return Decimal(x)
	case int:
		return Integer(x)
	case string:
		return x
	}
	return printer.Sprint(v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
