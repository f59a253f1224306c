package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
)

func deliberation(query string) *domain.Deliberation {
	return &domain.Deliberation{
		Query: query,
		Tier:  domain.TierFull,
		Final: domain.Synthesis{Model: "chair/model", Content: "answer for " + query},
	}
}

func newTestCache(t *testing.T, cfg Config) (*Cache, *time.Time) {
	t.Helper()
	c, err := Open(cfg)
	require.NoError(t, err)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_ExactHitAfterStore(t *testing.T) {
	c, _ := newTestCache(t, Config{Enabled: true})

	query := "Explain the CAP theorem."
	require.NoError(t, c.Store(query, deliberation(query), domain.TierFull))

	entry, similarity, ok := c.Lookup(query)
	require.True(t, ok)
	assert.Equal(t, 1.0, similarity)
	assert.Equal(t, query, entry.Query)
	assert.Equal(t, 1, entry.HitCount)
}

func TestCache_KeyNormalizesCaseAndWhitespace(t *testing.T) {
	c, _ := newTestCache(t, Config{Enabled: true})

	require.NoError(t, c.Store("Explain the CAP theorem.", deliberation("q"), domain.TierFull))

	_, similarity, ok := c.Lookup("  explain the cap theorem.  ")
	require.True(t, ok)
	assert.Equal(t, 1.0, similarity, "normalized queries share a key")
}

func TestCache_SimilarLookupAboveThreshold(t *testing.T) {
	c, _ := newTestCache(t, Config{Enabled: true, SimilarityThreshold: 0.6})

	stored := "What are the main benefits of using Kubernetes for container orchestration?"
	require.NoError(t, c.Store(stored, deliberation(stored), domain.TierFull))

	entry, similarity, ok := c.Lookup("What are the key benefits of using Kubernetes for container orchestration?")
	require.True(t, ok)
	assert.Equal(t, stored, entry.Query)
	assert.Greater(t, similarity, 0.6)
	assert.Less(t, similarity, 1.0)
}

func TestCache_MissBelowThreshold(t *testing.T) {
	c, _ := newTestCache(t, Config{Enabled: true})

	require.NoError(t, c.Store("How do I bake sourdough bread?", deliberation("q"), domain.TierFull))

	_, _, ok := c.Lookup("Explain quantum entanglement")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Misses)
}

func TestCache_EntriesExpireAfterTTL(t *testing.T) {
	c, now := newTestCache(t, Config{Enabled: true, TTL: time.Hour})

	query := "What will expire soon?"
	require.NoError(t, c.Store(query, deliberation(query), domain.TierFull))

	*now = now.Add(59 * time.Minute)
	_, _, ok := c.Lookup(query)
	assert.True(t, ok, "entry within TTL must be served")

	*now = now.Add(2 * time.Minute)
	_, _, ok = c.Lookup(query)
	assert.False(t, ok, "entry past TTL must be dropped")
	assert.Zero(t, c.Stats().Entries)
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	c, now := newTestCache(t, Config{Enabled: true, MaxEntries: 2})

	queries := []string{
		"completely distinct first question about astronomy",
		"completely distinct second question about geology",
		"completely distinct third question about botany",
	}
	for _, q := range queries {
		require.NoError(t, c.Store(q, deliberation(q), domain.TierFull))
		*now = now.Add(time.Minute)
	}

	_, _, ok := c.Lookup(queries[0])
	assert.False(t, ok, "oldest entry must be evicted")

	_, _, ok = c.Lookup(queries[2])
	assert.True(t, ok)
	assert.Equal(t, 2, c.Stats().Entries)
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "semantic.json")

	c, err := Open(Config{Enabled: true, Path: path})
	require.NoError(t, err)
	query := "Persist me please."
	require.NoError(t, c.Store(query, deliberation(query), domain.TierFull))

	reopened, err := Open(Config{Enabled: true, Path: path})
	require.NoError(t, err)

	entry, _, ok := reopened.Lookup(query)
	require.True(t, ok)
	assert.Equal(t, "answer for "+query, entry.Result.Final.Content)
}

func TestCache_ClearEmptiesStore(t *testing.T) {
	c, _ := newTestCache(t, Config{Enabled: true})

	require.NoError(t, c.Store("something", deliberation("something"), domain.TierFull))
	require.NoError(t, c.Clear())

	assert.Zero(t, c.Stats().Entries)
	_, _, ok := c.Lookup("something")
	assert.False(t, ok)
}

func TestCache_DisabledNeverStoresOrServes(t *testing.T) {
	c, err := Open(Config{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.Store("query", deliberation("query"), domain.TierFull))

	_, _, ok := c.Lookup("query")
	assert.False(t, ok)
}
