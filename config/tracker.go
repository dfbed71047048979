package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dealmungchi/pricewatch/pkg/errors"
)

const (
	// DefaultUserAgent is sent when an entity does not configure one
	DefaultUserAgent = "Mozilla/5.0"
	// DefaultTimeout bounds a single page fetch
	DefaultTimeout = 25 * time.Second
	// DefaultSMTPPort is the implicit TLS submission port
	DefaultSMTPPort = 465
	// DefaultDropPercent applies when neither the product nor the file sets one
	DefaultDropPercent = 10.0
)

// Config is the tracker configuration file
type Config struct {
	DefaultDropPercent *float64  `yaml:"default_drop_percent"`
	MSRP               float64   `yaml:"msrp"`
	SMTP               SMTP      `yaml:"smtp"`
	HTTP               HTTP      `yaml:"http"`
	Products           []Product `yaml:"products"`
	Searches           []Search  `yaml:"searches"`
}

// SMTP holds mail transport credentials
type SMTP struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// HTTP holds request settings shared by every fetch
type HTTP struct {
	Headers map[string]string `yaml:"headers"`
}

// Source is the part common to products and searches
type Source struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	UserAgent string `yaml:"user_agent"`
	// Timeout in seconds
	Timeout int `yaml:"timeout"`
}

// Product is a retailer page tracked against a baseline
type Product struct {
	Source      `yaml:",inline"`
	PriceRegex  string   `yaml:"price_regex"`
	Selector    string   `yaml:"selector"`
	Attr        string   `yaml:"attr"`
	DropPercent *float64 `yaml:"drop_percent"`
	Baseline    *float64 `yaml:"baseline"`
}

// Search is a used-market listing page
type Search struct {
	Source          `yaml:",inline"`
	ItemSelector    string   `yaml:"item_selector"`
	TitleSelector   string   `yaml:"title_selector"`
	PriceSelector   string   `yaml:"price_selector"`
	URLSelector     string   `yaml:"url_selector"`
	IncludeKeywords []string `yaml:"include_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
	AlertBelow      float64  `yaml:"alert_below"`
	PercentBelow    float64  `yaml:"alert_percent_below_msrp"`
	Site            string   `yaml:"site"`
}

// EntityID returns the configured id, falling back to the URL
func (s Source) EntityID() string {
	if s.ID != "" {
		return s.ID
	}
	return s.URL
}

// DisplayName returns the configured name, falling back to the entity id
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.EntityID()
}

// Agent returns the User-Agent for this source
func (s Source) Agent() string {
	if s.UserAgent != "" {
		return s.UserAgent
	}
	return DefaultUserAgent
}

// RequestTimeout returns the fetch timeout for this source
func (s Source) RequestTimeout() time.Duration {
	if s.Timeout > 0 {
		return time.Duration(s.Timeout) * time.Second
	}
	return DefaultTimeout
}

// Load reads, defaults and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration("read config "+path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfiguration("decode config", err)
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = DefaultSMTPPort
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot be run
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.DefaultDropPercent != nil && *c.DefaultDropPercent < 0 {
		add("default_drop_percent must not be negative")
	}
	if c.MSRP < 0 {
		add("msrp must not be negative")
	}

	ids := make(map[string]bool)
	checkSource := func(kind string, i int, s Source) string {
		label := fmt.Sprintf("%s[%d]", kind, i)
		if s.URL == "" {
			add("%s: url is required", label)
			return label
		}
		if !isHTTP(s.URL) {
			add("%s: url %q is not http(s)", label, s.URL)
		}
		id := kind + "/" + s.EntityID()
		if ids[id] {
			add("%s: duplicate id %q", label, s.EntityID())
		}
		ids[id] = true
		if s.Timeout < 0 {
			add("%s: timeout must not be negative", label)
		}
		return label
	}
	checkSelector := func(label, field, sel string) {
		if sel == "" {
			return
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			add("%s: %s %q: %v", label, field, sel, err)
		}
	}

	for i, p := range c.Products {
		label := checkSource("products", i, p.Source)
		if p.PriceRegex != "" {
			if _, err := regexp.Compile(p.PriceRegex); err != nil {
				add("%s: price_regex: %v", label, err)
			}
		}
		checkSelector(label, "selector", p.Selector)
		if p.DropPercent != nil && *p.DropPercent < 0 {
			add("%s: drop_percent must not be negative", label)
		}
		if p.Baseline != nil && *p.Baseline < 0 {
			add("%s: baseline must not be negative", label)
		}
	}

	for i, s := range c.Searches {
		label := checkSource("searches", i, s.Source)
		if s.ItemSelector == "" {
			add("%s: item_selector is required", label)
		}
		checkSelector(label, "item_selector", s.ItemSelector)
		checkSelector(label, "title_selector", s.TitleSelector)
		checkSelector(label, "price_selector", s.PriceSelector)
		checkSelector(label, "url_selector", s.URLSelector)
		if s.AlertBelow < 0 {
			add("%s: alert_below must not be negative", label)
		}
		if s.PercentBelow < 0 {
			add("%s: alert_percent_below_msrp must not be negative", label)
		}
	}

	if len(problems) > 0 {
		return errors.NewConfiguration(strings.Join(problems, "; "), nil)
	}
	return nil
}

// CheckSMTP returns a configuration error naming the missing SMTP fields
func (c *Config) CheckSMTP() error {
	var missing []string
	if c.SMTP.Host == "" {
		missing = append(missing, "host")
	}
	if c.SMTP.Username == "" {
		missing = append(missing, "username")
	}
	if c.SMTP.Password == "" {
		missing = append(missing, "password")
	}
	if c.SMTP.From == "" {
		missing = append(missing, "from")
	}
	if len(c.SMTP.To) == 0 {
		missing = append(missing, "to")
	}
	if len(missing) > 0 {
		return errors.NewConfiguration("smtp missing "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// SMTPReady reports whether alerts can be emailed
func (c *Config) SMTPReady() bool {
	return c.CheckSMTP() == nil
}

// DropThreshold resolves the drop percent for a product
func (c *Config) DropThreshold(p Product) decimal.Decimal {
	if p.DropPercent != nil {
		return decimal.NewFromFloat(*p.DropPercent)
	}
	if c.DefaultDropPercent != nil {
		return decimal.NewFromFloat(*c.DefaultDropPercent)
	}
	return decimal.NewFromFloat(DefaultDropPercent)
}

// Reference returns the MSRP used by percent-below rules
func (c *Config) Reference() decimal.Decimal {
	return decimal.NewFromFloat(c.MSRP)
}

// Headers builds request headers for a source: the shared headers with the
// source's User-Agent on top.
func (c *Config) Headers(s Source) map[string]string {
	headers := make(map[string]string, len(c.HTTP.Headers)+1)
	for k, v := range c.HTTP.Headers {
		if strings.EqualFold(k, "User-Agent") {
			continue
		}
		headers[k] = v
	}
	headers["User-Agent"] = s.Agent()
	return headers
}

func isHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
