package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal computes the charge for one line: round(price * quantity, 2).
func LineTotal(price, quantity decimal.Decimal) decimal.Decimal {
	return Round2(price.Mul(quantity))
}

// PercentOf computes round(subtotal * percent / 100, 2).
func PercentOf(subtotal, percent decimal.Decimal) decimal.Decimal {
	return Round2(subtotal.Mul(percent).Div(hundred))
}

// ClampToSubtotal caps a fixed discount so it never exceeds the subtotal.
func ClampToSubtotal(subtotal, amount decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// Total computes max(0, round(subtotal - discount, 2)).
func Total(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := Round2(subtotal.Sub(discount))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// FormatUSD renders a decimal as a US dollar amount, e.g. "$1,234.50".
func FormatUSD(d decimal.Decimal) string {
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(2)

	parts := strings.SplitN(fixed, ".", 2)
	whole := parts[0]

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	out := "$" + grouped.String() + "." + parts[1]
	if neg {
		out = "-" + out
	}
	return out
}
