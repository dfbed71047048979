package crawler

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dealmungchi/pricewatch/config"
	"github.com/dealmungchi/pricewatch/internal/trigger"
)

// PriceFetcher retrieves the current price of a tracked retailer product
type PriceFetcher interface {
	FetchPrice(ctx context.Context, product config.Product) (decimal.Decimal, error)
}

// ListingFetcher retrieves candidate listings from a used-market search page
type ListingFetcher interface {
	FetchListings(ctx context.Context, search config.Search) ([]trigger.Listing, error)
}

// HeaderFunc builds the request headers for a source
type HeaderFunc func(config.Source) map[string]string

// DefaultHeaders sends only the source's User-Agent
func DefaultHeaders(s config.Source) map[string]string {
	return map[string]string{"User-Agent": s.Agent()}
}
