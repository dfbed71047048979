package crawler

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/dealmungchi/pricewatch/internal/price"
)

// offerPriceKeys are the schema.org Offer fields that carry a price
var offerPriceKeys = map[string]bool{
	"price":     true,
	"lowPrice":  true,
	"highPrice": true,
}

// looseOfferPrice scans blocks that are not valid JSON
var looseOfferPrice = regexp.MustCompile(`"(?:price|lowPrice|highPrice)"\s*:\s*"?([0-9][0-9.,]*)`)

// metaPriceSelectors are tried in order when no structured block has a price
var metaPriceSelectors = []string{
	`meta[property="product:price:amount"]`,
	`meta[name="twitter:data1"]`,
}

// structuredPrices collects every offer price from the page's JSON-LD blocks
func structuredPrices(doc *goquery.Document) []decimal.Decimal {
	var prices []decimal.Decimal
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		// a block may hold several concatenated values
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		for {
			var v interface{}
			err := dec.Decode(&v)
			if err == io.EOF {
				return
			}
			if err != nil {
				for _, m := range looseOfferPrice.FindAllStringSubmatch(raw, -1) {
					if p, ok := price.Parse(m[1]); ok {
						prices = append(prices, p)
					}
				}
				return
			}
			collectOfferPrices(v, &prices)
		}
	})
	return prices
}

func collectOfferPrices(v interface{}, out *[]decimal.Decimal) {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if offerPriceKeys[k] {
				if p, ok := offerPrice(child); ok {
					*out = append(*out, p)
				}
			}
			collectOfferPrices(child, out)
		}
	case []interface{}:
		for _, child := range node {
			collectOfferPrices(child, out)
		}
	}
}

func offerPrice(v interface{}) (decimal.Decimal, bool) {
	switch value := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(value.String())
		return d, err == nil
	case string:
		return price.Parse(value)
	}
	return decimal.Decimal{}, false
}

// minPositive returns the smallest strictly positive value
func minPositive(values []decimal.Decimal) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, v := range values {
		if !v.IsPositive() {
			continue
		}
		if !found || v.LessThan(best) {
			best = v
			found = true
		}
	}
	return best, found
}

// metaPrice reads the Open Graph or Twitter card price
func metaPrice(doc *goquery.Document) (decimal.Decimal, bool) {
	for _, sel := range metaPriceSelectors {
		content, ok := doc.Find(sel).First().Attr("content")
		if !ok {
			continue
		}
		if p, ok := price.Parse(content); ok && p.IsPositive() {
			return p, true
		}
	}
	return decimal.Decimal{}, false
}
