package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealmungchi/pricewatch/config"
	"github.com/dealmungchi/pricewatch/helpers"
	"github.com/dealmungchi/pricewatch/internal/price"
	"github.com/dealmungchi/pricewatch/internal/trigger"
	"github.com/dealmungchi/pricewatch/logger"
)

// ListingCrawler extracts candidate listings from a search results page
type ListingCrawler struct {
	BaseCrawler
}

// NewListingCrawler creates a new listing crawler
func NewListingCrawler(fetcher helpers.Fetcher, headers HeaderFunc) *ListingCrawler {
	return &ListingCrawler{BaseCrawler: BaseCrawler{Fetcher: fetcher, Headers: headers}}
}

// FetchListings fetches the search page and extracts its item cards
func (c *ListingCrawler) FetchListings(ctx context.Context, search config.Search) ([]trigger.Listing, error) {
	body, err := c.fetch(ctx, search.Source)
	if err != nil {
		return nil, err
	}

	doc, err := createDocument(search.EntityID(), body)
	if err != nil {
		return nil, err
	}

	listings := ExtractListings(doc, search)
	logger.ForSearch(search.EntityID()).Debug().
		Str("site", search.Site).
		Int("listings", len(listings)).
		Msg("Listings extracted")
	return listings, nil
}

// ExtractListings returns one listing per item card, in document order.
// Cards with neither a title nor a URL are skipped.
func ExtractListings(doc *goquery.Document, search config.Search) []trigger.Listing {
	var listings []trigger.Listing
	doc.Find(search.ItemSelector).Each(func(_ int, card *goquery.Selection) {
		listing := processCard(card, search)
		if listing.Title == "" && listing.URL == "" {
			return
		}
		listings = append(listings, listing)
	})
	return listings
}

// processCard reads title, link and price from one card
func processCard(card *goquery.Selection, search config.Search) trigger.Listing {
	var listing trigger.Listing

	if titleSel, ok := find(card, search.TitleSelector); ok {
		listing.Title = strings.TrimSpace(titleSel.Text())
	}

	if linkSel, ok := find(card, search.URLSelector); ok {
		if href, exists := linkSel.Attr("href"); exists {
			listing.URL = ResolveURL(search.URL, strings.TrimSpace(href))
		}
	}

	if priceSel, ok := find(card, search.PriceSelector); ok {
		if p, ok := price.Parse(priceSel.Text()); ok {
			listing.Price.Decimal = p
			listing.Price.Valid = true
		}
	}

	return listing
}

// find returns the first node under s matching selector. An empty or
// unparsable selector matches nothing.
func find(s *goquery.Selection, selector string) (*goquery.Selection, bool) {
	if selector == "" {
		return nil, false
	}
	sel := s.Find(selector)
	if sel.Length() == 0 {
		return nil, false
	}
	return sel.First(), true
}

// ResolveURL makes href absolute: protocol-relative links get https, and
// root-relative links are resolved against an http(s) base.
func ResolveURL(base, href string) string {
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/") && strings.HasPrefix(base, "http"):
		baseURL, err := url.Parse(base)
		if err != nil {
			return href
		}
		ref, err := url.Parse(href)
		if err != nil {
			return href
		}
		return baseURL.ResolveReference(ref).String()
	}
	return href
}
