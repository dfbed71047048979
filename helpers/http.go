package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/dealmungchi/pricewatch/logger"
	"github.com/dealmungchi/pricewatch/pkg/errors"
	"github.com/dealmungchi/pricewatch/services/cache"
)

// rateLimitStatuses are answers that block a host for the block window
var rateLimitStatuses = []int{http.StatusTooManyRequests, 430}

// DefaultMaxBodyBytes bounds how much of a page is read
const DefaultMaxBodyBytes int64 = 10 << 20

// Fetcher retrieves a page as UTF-8 bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) ([]byte, error)
}

// HTTPFetcher fetches pages over HTTP. Hosts that answer with a rate-limit
// status are recorded in the cache and fail fast until the block expires.
type HTTPFetcher struct {
	Client       *http.Client
	Cache        cache.CacheService
	BlockTime    time.Duration
	MaxBodyBytes int64
}

// NewHTTPFetcher creates a fetcher; cacheSvc may be nil to disable host blocking
func NewHTTPFetcher(cacheSvc cache.CacheService, blockTime time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:       &http.Client{},
		Cache:        cacheSvc,
		BlockTime:    blockTime,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Fetch sends a GET request with the given headers, bounded by timeout, and
// returns the body converted to UTF-8.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) ([]byte, error) {
	host := hostOf(rawURL)
	if f.blocked(host) {
		return nil, errors.NewRateLimit(host, f.BlockTime)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewFetch(rawURL, "failed to create request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, errors.NewFetch(rawURL, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains(rateLimitStatuses, resp.StatusCode) {
		f.block(host, resp.Header.Get("Retry-After"))
		return nil, errors.NewRateLimit(host, f.BlockTime)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewFetch(rawURL, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.NewFetch(rawURL, "failed to read response body", err)
	}
	if int64(len(bodyBytes)) > limit {
		return nil, errors.NewFetch(rawURL, fmt.Sprintf("response body exceeds %d bytes", limit), nil)
	}

	utf8Body, err := ToUTF8(bodyBytes, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.NewFetch(rawURL, "failed to convert body to UTF-8", err)
	}
	return utf8Body, nil
}

func (f *HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *HTTPFetcher) blocked(host string) bool {
	if f.Cache == nil || host == "" {
		return false
	}
	_, err := f.Cache.Get(blockKey(host))
	return err == nil
}

func (f *HTTPFetcher) block(host, retryAfter string) {
	if f.Cache == nil || host == "" || f.BlockTime <= 0 {
		return
	}
	if err := f.Cache.Set(blockKey(host), []byte(retryAfter), f.BlockTime); err != nil {
		logger.ForCache().Warn().Err(err).Str("host", host).Msg("Failed to record host block")
		return
	}
	logger.ForCache().Info().
		Str("host", host).
		Dur("block", f.BlockTime).
		Str("retry_after", retryAfter).
		Msg("Host rate limited; skipping until block expires")
}

// ToUTF8 converts body to UTF-8 using the Content-Type header and the body's
// own meta declarations.
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") {
		return body, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func blockKey(host string) string {
	return "pricewatch:block:" + host
}
