package crawler

import (
	"bytes"
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealmungchi/pricewatch/config"
	"github.com/dealmungchi/pricewatch/helpers"
	"github.com/dealmungchi/pricewatch/pkg/errors"
)

// BaseCrawler provides the fetch and parse steps shared by the crawlers
type BaseCrawler struct {
	Fetcher helpers.Fetcher
	Headers HeaderFunc
}

// fetch retrieves the source page with its headers and timeout
func (c *BaseCrawler) fetch(ctx context.Context, s config.Source) ([]byte, error) {
	headers := DefaultHeaders
	if c.Headers != nil {
		headers = c.Headers
	}
	return c.Fetcher.Fetch(ctx, s.URL, headers(s), s.RequestTimeout())
}

// createDocument creates a goquery document from a page body
func createDocument(entity string, body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewMalformedMarkup(entity, "failed to parse HTML", err)
	}
	return doc, nil
}
