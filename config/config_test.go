package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmungchi/pricewatch/pkg/errors"
)

func TestLoadRuntime(t *testing.T) {
	// Test with default values
	runtime := LoadRuntime()
	assert.Equal(t, "prices_state.json", runtime.StateFile)
	assert.Equal(t, "", runtime.RedisAddr)
	assert.Equal(t, 0, runtime.RedisDB)
	assert.Equal(t, "pricewatch:alerts", runtime.RedisStream)
	assert.Equal(t, int64(1000), runtime.RedisStreamMaxLength)
	assert.Equal(t, "", runtime.MemcacheAddr)
	assert.Equal(t, 4, runtime.FetchConcurrency)
	assert.Equal(t, 300*time.Second, runtime.FetchBlockTime)

	// Test with environment variables
	t.Setenv("PT_STATE_FILE", "/tmp/state.json")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")
	t.Setenv("FETCH_CONCURRENCY", "0")
	t.Setenv("FETCH_BLOCK_SECONDS", "30")

	runtime = LoadRuntime()
	assert.Equal(t, "/tmp/state.json", runtime.StateFile)
	assert.Equal(t, "redis.example.com:6379", runtime.RedisAddr)
	assert.Equal(t, 1, runtime.RedisDB)
	assert.Equal(t, "memcache.example.com:11211", runtime.MemcacheAddr)
	assert.Equal(t, 1, runtime.FetchConcurrency)
	assert.Equal(t, 30*time.Second, runtime.FetchBlockTime)
}

const sampleConfig = `
default_drop_percent: 12
msrp: 2747.00
smtp:
  host: smtp.example.com
  username: bot
  password: secret
  from: bot@example.com
  to: [me@example.com]
http:
  headers:
    Accept-Language: en-US
    User-Agent: ignored
products:
  - id: board-shop
    name: Board 6'7
    url: https://shop.example/board
    price_regex: 'data-price="([0-9.,]+)"'
    drop_percent: 5
  - url: https://other.example/board
    selector: span.price
    attr: content
    baseline: 2500
    user_agent: custom-agent
    timeout: 5
searches:
  - id: used-boards
    url: https://market.example/search?q=board
    item_selector: li.result
    title_selector: .title
    price_selector: .price
    url_selector: a
    include_keywords: ["6'7"]
    exclude_keywords: ["90L"]
    alert_below: 2300
    alert_percent_below_msrp: 20
    site: generic
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSMTPPort, cfg.SMTP.Port)
	assert.True(t, cfg.SMTPReady())
	require.Len(t, cfg.Products, 2)
	require.Len(t, cfg.Searches, 1)

	first := cfg.Products[0]
	assert.Equal(t, "board-shop", first.EntityID())
	assert.Equal(t, "Board 6'7", first.DisplayName())
	assert.Equal(t, DefaultUserAgent, first.Agent())
	assert.Equal(t, DefaultTimeout, first.RequestTimeout())
	assert.True(t, cfg.DropThreshold(first).Equal(decimal.NewFromInt(5)))

	second := cfg.Products[1]
	assert.Equal(t, "https://other.example/board", second.EntityID())
	assert.Equal(t, second.URL, second.DisplayName())
	assert.Equal(t, 5*time.Second, second.RequestTimeout())
	require.NotNil(t, second.Baseline)
	assert.Equal(t, 2500.0, *second.Baseline)
	assert.True(t, cfg.DropThreshold(second).Equal(decimal.NewFromInt(12)))

	headers := cfg.Headers(second.Source)
	assert.Equal(t, "custom-agent", headers["User-Agent"])
	assert.Equal(t, "en-US", headers["Accept-Language"])
	assert.Len(t, headers, 2)

	search := cfg.Searches[0]
	assert.Equal(t, "used-boards", search.EntityID())
	assert.Equal(t, []string{"6'7"}, search.IncludeKeywords)
	assert.Equal(t, 2300.0, search.AlertBelow)
	assert.Equal(t, 20.0, search.PercentBelow)
	assert.True(t, cfg.Reference().Equal(decimal.NewFromInt(2747)))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeConfiguration))
}

func TestDropThresholdDefault(t *testing.T) {
	cfg, err := Parse([]byte("products:\n  - url: https://shop.example/x\n"))
	require.NoError(t, err)
	assert.True(t, cfg.DropThreshold(cfg.Products[0]).Equal(decimal.NewFromInt(10)))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "valid minimal",
			doc:  "products:\n  - url: https://shop.example/x\n",
		},
		{
			name:    "missing product url",
			doc:     "products:\n  - id: x\n",
			wantErr: "url is required",
		},
		{
			name:    "non http url",
			doc:     "products:\n  - url: ftp://shop.example/x\n",
			wantErr: "is not http(s)",
		},
		{
			name:    "duplicate ids",
			doc:     "products:\n  - id: a\n    url: https://a.example\n  - id: a\n    url: https://b.example\n",
			wantErr: "duplicate id",
		},
		{
			name:    "bad regex",
			doc:     "products:\n  - url: https://a.example\n    price_regex: '([0-9'\n",
			wantErr: "price_regex",
		},
		{
			name:    "bad selector",
			doc:     "products:\n  - url: https://a.example\n    selector: 'div[['\n",
			wantErr: "selector",
		},
		{
			name:    "missing item selector",
			doc:     "searches:\n  - url: https://m.example\n",
			wantErr: "item_selector is required",
		},
		{
			name:    "negative threshold",
			doc:     "searches:\n  - url: https://m.example\n    item_selector: li\n    alert_below: -1\n",
			wantErr: "alert_below must not be negative",
		},
		{
			name: "same id across kinds",
			doc:  "products:\n  - id: a\n    url: https://a.example\nsearches:\n  - id: a\n    url: https://m.example\n    item_selector: li\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrorTypeConfiguration))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCheckSMTP(t *testing.T) {
	cfg := &Config{SMTP: SMTP{Host: "smtp.example.com", From: "a@example.com"}}
	err := cfg.CheckSMTP()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username, password, to")
	assert.False(t, cfg.SMTPReady())
}
