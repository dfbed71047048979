package crawler

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/dealmungchi/pricewatch/config"
	"github.com/dealmungchi/pricewatch/helpers"
	"github.com/dealmungchi/pricewatch/internal/price"
	"github.com/dealmungchi/pricewatch/logger"
	"github.com/dealmungchi/pricewatch/pkg/errors"
)

// page is one fetched copy of a product page
type page struct {
	entity string
	body   []byte
	doc    *goquery.Document
	err    error
	parsed bool
}

// document parses the body once
func (p *page) document() (*goquery.Document, error) {
	if !p.parsed {
		p.doc, p.err = createDocument(p.entity, p.body)
		p.parsed = true
	}
	return p.doc, p.err
}

// strategy is one step of the extraction chain
type strategy struct {
	name string
	// applies reports whether the product configures this strategy
	applies func(config.Product) bool
	// fresh strategies fetch their own copy of the page
	fresh   bool
	extract func(*page, config.Product) (decimal.Decimal, bool)
}

// strategies are tried in order; the first price wins
var strategies = []strategy{
	{
		name:    "pattern",
		applies: func(p config.Product) bool { return p.PriceRegex != "" },
		fresh:   true,
		extract: extractPattern,
	},
	{
		name:    "structured",
		applies: func(config.Product) bool { return true },
		fresh:   true,
		extract: extractStructured,
	},
	{
		name:    "selector",
		applies: func(p config.Product) bool { return p.Selector != "" },
		extract: extractSelector,
	},
}

// PageCrawler extracts a single price from a retailer product page
type PageCrawler struct {
	BaseCrawler
}

// NewPageCrawler creates a new page crawler
func NewPageCrawler(fetcher helpers.Fetcher, headers HeaderFunc) *PageCrawler {
	return &PageCrawler{BaseCrawler: BaseCrawler{Fetcher: fetcher, Headers: headers}}
}

// FetchPrice runs the extraction chain for a product. A fetch failure aborts
// the chain; exhausting every strategy yields a price-not-found error.
func (c *PageCrawler) FetchPrice(ctx context.Context, product config.Product) (decimal.Decimal, error) {
	id := product.EntityID()
	log := logger.ForProduct(id)

	var current *page
	var markupErr error
	for _, s := range strategies {
		if !s.applies(product) {
			continue
		}
		if s.fresh || current == nil {
			body, err := c.fetch(ctx, product.Source)
			if err != nil {
				return decimal.Decimal{}, err
			}
			current = &page{entity: id, body: body}
		}

		if value, ok := s.extract(current, product); ok {
			log.Debug().Str("strategy", s.name).Str("price", value.String()).Msg("Price extracted")
			return value, nil
		}
		if _, err := current.document(); err != nil {
			markupErr = err
		}
		log.Debug().Str("strategy", s.name).Msg("Strategy found no price")
	}

	if markupErr != nil {
		return decimal.Decimal{}, markupErr
	}
	return decimal.Decimal{}, errors.NewPriceNotFound(id)
}

// extractPattern applies the product's case-insensitive pattern to the raw
// page text, using the first group or else the whole match.
func extractPattern(p *page, product config.Product) (decimal.Decimal, bool) {
	re, err := regexp.Compile("(?i)" + product.PriceRegex)
	if err != nil {
		return decimal.Decimal{}, false
	}
	m := re.FindSubmatch(p.body)
	if m == nil {
		return decimal.Decimal{}, false
	}
	text := m[0]
	if len(m) > 1 {
		text = m[1]
	}
	return price.Parse(string(text))
}

// extractStructured prefers the lowest positive JSON-LD offer price and
// falls back to social meta tags.
func extractStructured(p *page, _ config.Product) (decimal.Decimal, bool) {
	doc, err := p.document()
	if err != nil {
		return decimal.Decimal{}, false
	}
	if value, ok := minPositive(structuredPrices(doc)); ok {
		return value, true
	}
	return metaPrice(doc)
}

func extractSelector(p *page, product config.Product) (decimal.Decimal, bool) {
	doc, err := p.document()
	if err != nil {
		return decimal.Decimal{}, false
	}
	node, ok := find(doc.Selection, product.Selector)
	if !ok {
		return decimal.Decimal{}, false
	}

	var text string
	if product.Attr != "" {
		text, ok = node.Attr(product.Attr)
		if !ok {
			return decimal.Decimal{}, false
		}
	} else {
		text = node.Text()
	}
	return price.Parse(strings.TrimSpace(text))
}
