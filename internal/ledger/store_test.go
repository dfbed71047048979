package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "prices_state.json"))

	l, err := store.Load()
	require.NoError(t, err)
	_, ok := l.Baseline("anything")
	assert.False(t, ok)
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices_state.json")
	store := NewFileStore(path)
	assert.Equal(t, path, store.Path())

	l := New()
	l.SetBaseline("board", decimal.NewFromInt(500))
	l.Seen("used").Add("https://market.example/1")
	require.NoError(t, store.Save(l))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file must not be left behind")
	assert.Equal(t, "prices_state.json", entries[0].Name())

	loaded, err := store.Load()
	require.NoError(t, err)
	b, ok := loaded.Baseline("board")
	require.True(t, ok)
	assert.True(t, b.Equal(decimal.NewFromInt(500)))
	assert.True(t, loaded.Seen("used").Contains("https://market.example/1"))
}

func TestFileStoreSaveReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"products":{}}`), 0o644))
	store := NewFileStore(path)

	l := New()
	l.SetBaseline("p", decimal.NewFromInt(7))
	require.NoError(t, store.Save(l))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"baseline": 7`)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"products":`), 0o644))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decode state file")
}
