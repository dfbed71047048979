// Package trigger decides whether an observed price is worth an alert.
package trigger

import (
	"fmt"
	"strings"

	"github.com/dealmungchi/pricewatch/internal/price"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultDropPercent applies when neither the product nor the config sets one.
var DefaultDropPercent = decimal.NewFromInt(10)

var printer = message.NewPrinter(language.English)

// RetailResult is the outcome of the retailer baseline rule.
type RetailResult struct {
	Fired     bool
	Drop      decimal.Decimal
	Threshold decimal.Decimal
	Reason    string
}

// EvaluateRetail fires when current is at least threshold percent below baseline.
func EvaluateRetail(baseline, current, threshold decimal.Decimal) RetailResult {
	drop := price.PctDrop(baseline, current)
	return RetailResult{
		Fired:     drop.GreaterThanOrEqual(threshold),
		Drop:      drop,
		Threshold: threshold,
		Reason:    fmt.Sprintf("%s%% drop (threshold %s%%)", drop.StringFixed(2), threshold.StringFixed(2)),
	}
}

// Listing is a candidate found on a used-market search page.
type Listing struct {
	Title string
	URL   string
	Price decimal.NullDecimal
}

// Rules configures the used-listing rule for one search.
type Rules struct {
	Include []string
	Exclude []string
	// AlertBelow is an absolute ceiling; disabled when not positive.
	AlertBelow decimal.Decimal
	// Reference and PercentBelow drive the percent rule; disabled unless both are positive.
	Reference    decimal.Decimal
	PercentBelow decimal.Decimal
}

// Match is a listing that fired.
type Match struct {
	Listing
	Reason string
}

// SeenChecker reports whether a listing identifier was alerted on before.
type SeenChecker interface {
	Contains(id string) bool
}

// MatchesKeywords reports whether title contains every include keyword and no
// exclude keyword, case-insensitively.
func MatchesKeywords(title string, include, exclude []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range include {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	for _, kw := range exclude {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// EvaluateListing applies the economic rules to one listing. The ceiling rule
// wins over the reference rule.
func EvaluateListing(l Listing, rules Rules) (Match, bool) {
	if !l.Price.Valid {
		return Match{}, false
	}
	p := l.Price.Decimal

	if rules.AlertBelow.IsPositive() && p.LessThanOrEqual(rules.AlertBelow) {
		return Match{Listing: l, Reason: "<= $" + FormatMoney(rules.AlertBelow, 0)}, true
	}

	if rules.Reference.IsPositive() && rules.PercentBelow.IsPositive() {
		drop := price.PctDrop(rules.Reference, p)
		if drop.GreaterThanOrEqual(rules.PercentBelow) {
			return Match{Listing: l, Reason: drop.StringFixed(1) + "% below reference"}, true
		}
	}

	return Match{}, false
}

// EvaluateListings filters candidates by keywords and the seen set, then
// applies the economic rules. Order of the input is preserved.
func EvaluateListings(listings []Listing, rules Rules, seen SeenChecker) []Match {
	var matches []Match
	for _, l := range listings {
		if !MatchesKeywords(l.Title, rules.Include, rules.Exclude) {
			continue
		}
		if l.URL != "" && seen != nil && seen.Contains(l.URL) {
			continue
		}
		if m, ok := EvaluateListing(l, rules); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

// FormatMoney renders d with thousands separators and the given decimals.
func FormatMoney(d decimal.Decimal, places int32) string {
	f, _ := d.Round(places).Float64()
	if places <= 0 {
		return printer.Sprintf("%.0f", f)
	}
	return printer.Sprintf("%.2f", f)
}
