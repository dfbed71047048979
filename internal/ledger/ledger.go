// Package ledger keeps per-entity price state between runs: retailer
// baselines with a bounded history, and per-search sets of listings that were
// already alerted on.
package ledger

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// HistoryCap is the number of samples kept per product.
	HistoryCap = 300
	// SeenCap is the number of listing identifiers persisted per search.
	SeenCap = 2000
)

func init() {
	// State files carry prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Sample is one observed price.
type Sample struct {
	T     int64           `json:"t"`
	Price decimal.Decimal `json:"price"`
}

// ProductState is the ledger entry of a tracked retailer product.
type ProductState struct {
	Baseline  decimal.NullDecimal `json:"baseline"`
	History   []Sample            `json:"history"`
	LastPrice decimal.NullDecimal `json:"last_price"`
	URL       string              `json:"url"`
	Name      string              `json:"name"`
}

// SeenSet holds listing identifiers already alerted on for one search.
type SeenSet struct {
	ids map[string]struct{}
}

func newSeenSet(ids []string) *SeenSet {
	s := &SeenSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Contains reports whether id was seen before.
func (s *SeenSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records id. Empty identifiers are ignored.
func (s *SeenSet) Add(id string) {
	if id == "" {
		return
	}
	s.ids[id] = struct{}{}
}

// Len returns the number of identifiers held in memory.
func (s *SeenSet) Len() int {
	return len(s.ids)
}

// Sorted returns the identifiers in ascending order, capped to the greatest
// SeenCap entries.
func (s *SeenSet) Sorted() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	if len(out) > SeenCap {
		out = out[len(out)-SeenCap:]
	}
	return out
}

type searchState struct {
	Seen []string `json:"seen"`
}

// Ledger is the in-memory state snapshot for one run. It is not safe for
// concurrent mutation; the worker applies results sequentially.
type Ledger struct {
	products map[string]*ProductState
	searches map[string]*SeenSet
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		products: make(map[string]*ProductState),
		searches: make(map[string]*SeenSet),
	}
}

func (l *Ledger) product(id string) *ProductState {
	st, ok := l.products[id]
	if !ok {
		st = &ProductState{}
		l.products[id] = st
	}
	return st
}

// Product returns a copy of the stored state for id.
func (l *Ledger) Product(id string) (ProductState, bool) {
	st, ok := l.products[id]
	if !ok {
		return ProductState{}, false
	}
	cp := *st
	cp.History = append([]Sample(nil), st.History...)
	return cp, true
}

// Baseline returns the stored baseline for id, if one was initialized.
func (l *Ledger) Baseline(id string) (decimal.Decimal, bool) {
	st, ok := l.products[id]
	if !ok || !st.Baseline.Valid {
		return decimal.Zero, false
	}
	return st.Baseline.Decimal, true
}

// SetBaseline stores the baseline for id. Negative values are clamped to zero.
func (l *Ledger) SetBaseline(id string, baseline decimal.Decimal) {
	if baseline.IsNegative() {
		baseline = decimal.Zero
	}
	l.product(id).Baseline = decimal.NewNullDecimal(baseline)
}

// AppendHistory adds a sample for id, evicting the oldest beyond HistoryCap.
func (l *Ledger) AppendHistory(id string, sample Sample) {
	st := l.product(id)
	st.History = append(st.History, sample)
	if len(st.History) > HistoryCap {
		st.History = append([]Sample(nil), st.History[len(st.History)-HistoryCap:]...)
	}
}

// SetLastPrice records the most recent observed price for id.
func (l *Ledger) SetLastPrice(id string, p decimal.Decimal) {
	l.product(id).LastPrice = decimal.NewNullDecimal(p)
}

// SetDisplay stores the denormalized name and URL for id.
func (l *Ledger) SetDisplay(id, name, url string) {
	st := l.product(id)
	st.Name = name
	st.URL = url
}

// Seen returns the seen set for a search, creating it when absent.
func (l *Ledger) Seen(searchID string) *SeenSet {
	s, ok := l.searches[searchID]
	if !ok {
		s = newSeenSet(nil)
		l.searches[searchID] = s
	}
	return s
}

type document struct {
	Products map[string]*ProductState `json:"products"`
	Searches map[string]searchState   `json:"searches"`
}

// MarshalJSON encodes the persisted state document. Seen sets are written
// sorted and capped.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	doc := document{
		Products: l.products,
		Searches: make(map[string]searchState, len(l.searches)),
	}
	for id, s := range l.searches {
		doc.Searches[id] = searchState{Seen: s.Sorted()}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a persisted state document.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	fresh := New()
	for id, st := range doc.Products {
		if st == nil {
			continue
		}
		if len(st.History) > HistoryCap {
			st.History = st.History[len(st.History)-HistoryCap:]
		}
		fresh.products[id] = st
	}
	for id, s := range doc.Searches {
		fresh.searches[id] = newSeenSet(s.Seen)
	}
	*l = *fresh
	return nil
}
