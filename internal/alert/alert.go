// Package alert builds the messages sent when a trigger fires.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealmungchi/pricewatch/internal/trigger"
)

// Kind distinguishes retailer alerts from used-market alerts
type Kind string

const (
	KindRetail Kind = "retail"
	KindUsed   Kind = "used"
)

// Finding is one used listing inside an alert
type Finding struct {
	Title  string           `json:"title"`
	URL    string           `json:"url"`
	Price  *decimal.Decimal `json:"price,omitempty"`
	Reason string           `json:"reason"`
}

// Payload is an alert ready to be delivered
type Payload struct {
	Kind     Kind             `json:"kind"`
	Entity   string           `json:"entity"`
	Name     string           `json:"name"`
	URL      string           `json:"url"`
	Subject  string           `json:"subject"`
	Body     string           `json:"body"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Baseline *decimal.Decimal `json:"baseline,omitempty"`
	Drop     *decimal.Decimal `json:"drop,omitempty"`
	Findings []Finding        `json:"findings,omitempty"`
	Time     time.Time        `json:"time"`
}

// Source identifies the tracked entity an alert is about
type Source struct {
	Entity string
	Name   string
	URL    string
}

// RetailDrop builds the alert for a retailer price below its baseline
func RetailDrop(src Source, current, baseline decimal.Decimal, result trigger.RetailResult) Payload {
	subject := fmt.Sprintf("[Retail Price Drop] %s → %s (%s%% down)",
		src.Name, current.StringFixed(2), result.Drop.StringFixed(1))

	var body strings.Builder
	fmt.Fprintf(&body, "%s\n%s\n\n", src.Name, src.URL)
	fmt.Fprintf(&body, "Current: $%s\n", trigger.FormatMoney(current, 2))
	fmt.Fprintf(&body, "Baseline: $%s\n", trigger.FormatMoney(baseline, 2))
	fmt.Fprintf(&body, "Drop: %s%% (threshold %s%%)\n", result.Drop.StringFixed(2), result.Threshold.StringFixed(2))

	return Payload{
		Kind:     KindRetail,
		Entity:   src.Entity,
		Name:     src.Name,
		URL:      src.URL,
		Subject:  subject,
		Body:     body.String(),
		Price:    &current,
		Baseline: &baseline,
		Drop:     &result.Drop,
		Time:     time.Now(),
	}
}

// UsedFinds builds one alert covering every new match of a search
func UsedFinds(src Source, matches []trigger.Match) Payload {
	subject := fmt.Sprintf("[Used Finds] %s - %d new match(es)", src.Name, len(matches))

	lines := make([]string, 0, len(matches))
	findings := make([]Finding, 0, len(matches))
	for _, m := range matches {
		finding := Finding{Title: m.Title, URL: m.URL, Reason: m.Reason}
		pricePart := ""
		if m.Price.Valid {
			p := m.Price.Decimal
			finding.Price = &p
			pricePart = " - $" + trigger.FormatMoney(p, 0)
		}
		findings = append(findings, finding)
		lines = append(lines, fmt.Sprintf("- %s%s\n  %s\n  Trigger: %s", m.Title, pricePart, m.URL, m.Reason))
	}

	return Payload{
		Kind:     KindUsed,
		Entity:   src.Entity,
		Name:     src.Name,
		URL:      src.URL,
		Subject:  subject,
		Body:     fmt.Sprintf("%s\n%s\n\n%s", src.Name, src.URL, strings.Join(lines, "\n\n")),
		Findings: findings,
		Time:     time.Now(),
	}
}
