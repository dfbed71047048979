// Package price turns loosely formatted price text into decimals.
package price

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	nonNumeric     = regexp.MustCompile(`[^0-9.,]`)
	numberToken    = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	thousandsGroup = regexp.MustCompile(`^[0-9]{1,3}(?:,[0-9]{3})+$`)

	hundred = decimal.NewFromInt(100)
)

// Parse extracts a price from text such as "$1,299", "2,747.00" or "2.747,00".
// The separator occurring last is the decimal point, except that a comma-only
// string made of three-digit groups ("1,299") uses commas for thousands.
func Parse(text string) (decimal.Decimal, bool) {
	cleaned := nonNumeric.ReplaceAllString(text, "")
	if cleaned == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	var normalized string
	switch {
	case lastComma > lastDot && lastDot < 0 && thousandsGroup.MatchString(cleaned):
		normalized = strings.ReplaceAll(cleaned, ",", "")
	case lastComma > lastDot:
		normalized = strings.ReplaceAll(cleaned, ".", "")
		normalized = strings.ReplaceAll(normalized, ",", ".")
	default:
		normalized = strings.ReplaceAll(cleaned, ",", "")
	}

	token := numberToken.FindString(normalized)
	if token == "" {
		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// PctDrop returns how far current sits below old, in percent. A price
// increase yields a negative value; a non-positive old yields zero.
func PctDrop(old, current decimal.Decimal) decimal.Decimal {
	if !old.IsPositive() {
		return decimal.Zero
	}
	return old.Sub(current).Div(old).Mul(hundred)
}
