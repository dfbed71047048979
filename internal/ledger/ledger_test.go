package ledger

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaselineReadDoesNotMutate(t *testing.T) {
	l := New()

	_, ok := l.Baseline("board")
	assert.False(t, ok)
	_, exists := l.Product("board")
	assert.False(t, exists, "reading a baseline must not create an entry")

	l.SetBaseline("board", decimal.NewFromInt(500))
	b, ok := l.Baseline("board")
	require.True(t, ok)
	assert.True(t, b.Equal(decimal.NewFromInt(500)))
}

func TestSetBaselineClampsNegative(t *testing.T) {
	l := New()
	l.SetBaseline("board", decimal.NewFromInt(-3))

	b, ok := l.Baseline("board")
	require.True(t, ok)
	assert.True(t, b.IsZero())
}

func TestAppendHistoryCapped(t *testing.T) {
	l := New()
	for i := 0; i < 310; i++ {
		l.AppendHistory("board", Sample{T: int64(i), Price: decimal.NewFromInt(int64(i))})
	}

	st, ok := l.Product("board")
	require.True(t, ok)
	require.Len(t, st.History, HistoryCap)
	assert.Equal(t, int64(10), st.History[0].T)
	assert.Equal(t, int64(309), st.History[HistoryCap-1].T)
	for i := 1; i < len(st.History); i++ {
		assert.Less(t, st.History[i-1].T, st.History[i].T)
	}
}

func TestSeenSet(t *testing.T) {
	l := New()
	seen := l.Seen("used-boards")
	assert.False(t, seen.Contains("https://example.com/a"))

	seen.Add("https://example.com/b")
	seen.Add("https://example.com/a")
	seen.Add("")

	assert.True(t, l.Seen("used-boards").Contains("https://example.com/a"))
	assert.Equal(t, 2, seen.Len())
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, seen.Sorted())
}

func TestSeenSetCapKeepsGreatest(t *testing.T) {
	l := New()
	seen := l.Seen("s")
	for i := 0; i < SeenCap+5; i++ {
		seen.Add(fmt.Sprintf("https://example.com/%05d", i))
	}

	// eviction only happens on serialization
	assert.Equal(t, SeenCap+5, seen.Len())
	assert.True(t, seen.Contains("https://example.com/00000"))

	sorted := seen.Sorted()
	require.Len(t, sorted, SeenCap)
	assert.Equal(t, "https://example.com/00005", sorted[0])
	assert.Equal(t, fmt.Sprintf("https://example.com/%05d", SeenCap+4), sorted[SeenCap-1])
}

func TestJSONRoundTripShape(t *testing.T) {
	l := New()
	l.SetBaseline("board", decimal.RequireFromString("2747.00"))
	l.SetLastPrice("board", decimal.RequireFromString("2699.5"))
	l.AppendHistory("board", Sample{T: 1700000000, Price: decimal.RequireFromString("2699.5")})
	l.SetDisplay("board", "Board 6'7", "https://shop.example/board")
	l.Seen("used").Add("https://market.example/item/2")
	l.Seen("used").Add("https://market.example/item/1")

	data, err := json.Marshal(l)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	product := raw["products"].(map[string]any)["board"].(map[string]any)
	assert.Equal(t, float64(2747), product["baseline"])
	assert.Equal(t, 2699.5, product["last_price"])
	assert.Equal(t, "Board 6'7", product["name"])
	history := product["history"].([]any)
	assert.Equal(t, float64(1700000000), history[0].(map[string]any)["t"])
	seen := raw["searches"].(map[string]any)["used"].(map[string]any)["seen"].([]any)
	assert.Equal(t, []any{"https://market.example/item/1", "https://market.example/item/2"}, seen)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))
	b, ok := restored.Baseline("board")
	require.True(t, ok)
	assert.True(t, b.Equal(decimal.NewFromInt(2747)))
	assert.True(t, restored.Seen("used").Contains("https://market.example/item/1"))
}

func TestUnmarshalWithoutBaseline(t *testing.T) {
	l := New()
	require.NoError(t, json.Unmarshal([]byte(`{"products":{"p":{"history":[],"url":"u","name":"n"}}}`), l))

	_, ok := l.Baseline("p")
	assert.False(t, ok)
	assert.Equal(t, 0, l.Seen("missing").Len())
}
