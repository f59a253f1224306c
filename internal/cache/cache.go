package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
)

// Default cache behavior. Entries expire after TTL, the store evicts
// oldest-first when full, and lookups accept near-duplicate queries
// above the similarity threshold.
const (
	DefaultTTL                 = 24 * time.Hour
	DefaultMaxEntries          = 1000
	DefaultSimilarityThreshold = 0.85
)

// Config controls the semantic cache.
type Config struct {
	Enabled             bool          `yaml:"enabled"`
	TTL                 time.Duration `yaml:"ttl" validate:"min=0"`
	MaxEntries          int           `yaml:"max_entries" validate:"min=0"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" validate:"gte=0,lte=1"`

	// Path is the JSON persistence file. Empty disables persistence.
	Path string `yaml:"path"`
}

// DefaultConfig returns the standard cache profile.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		TTL:                 DefaultTTL,
		MaxEntries:          DefaultMaxEntries,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// Entry is a cached deliberation result.
type Entry struct {
	Query     string               `json:"query"`
	Result    *domain.Deliberation `json:"result"`
	Tier      domain.Tier          `json:"tier"`
	CreatedAt time.Time            `json:"created_at"`
	HitCount  int                  `json:"hit_count"`
}

func (e *Entry) expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.After(e.CreatedAt.Add(ttl))
}

// Stats reports cache occupancy and hit accounting.
type Stats struct {
	Entries             int     `json:"entries"`
	TotalHits           int     `json:"total_hits"`
	ExactHits           int     `json:"exact_hits"`
	SimilarHits         int     `json:"similar_hits"`
	Misses              int     `json:"misses"`
	MaxEntries          int     `json:"max_entries"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// Cache stores deliberation results keyed by normalized query text.
// Lookups try an exact key first, then scan for the most similar
// non-expired entry at or above the similarity threshold. All methods
// are safe for concurrent use.
type Cache struct {
	mu sync.Mutex

	cfg     Config
	entries map[string]*Entry

	exactHits   int
	similarHits int
	misses      int

	// now is replaceable in tests.
	now func() time.Time
}

// Open loads a cache from cfg.Path, dropping entries that have
// expired on load.
func Open(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}

	c := &Cache{
		cfg:     cfg,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}

	if cfg.Path != "" {
		data, err := os.ReadFile(cfg.Path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read cache file: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(data, &c.entries); err != nil {
				return nil, fmt.Errorf("decode cache file: %w", err)
			}
			c.cleanExpiredLocked()
		}
	}
	return c, nil
}

// Key derives the storage key for a query. Queries differing only in
// case or surrounding whitespace share a key.
func Key(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached entry for a query, preferring an exact
// key match and falling back to the best similar entry. The returned
// similarity is 1 for exact hits. Expired entries encountered during
// the scan are removed.
func (c *Cache) Lookup(query string) (*Entry, float64, bool) {
	if !c.cfg.Enabled {
		return nil, 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if entry, ok := c.entries[Key(query)]; ok {
		if entry.expired(c.cfg.TTL, now) {
			delete(c.entries, Key(query))
		} else {
			entry.HitCount++
			c.exactHits++
			return entry, 1.0, true
		}
	}

	var (
		best      *Entry
		bestScore float64
	)
	for key, entry := range c.entries {
		if entry.expired(c.cfg.TTL, now) {
			delete(c.entries, key)
			continue
		}
		score := Similarity(query, entry.Query)
		if score >= c.cfg.SimilarityThreshold && score > bestScore {
			best, bestScore = entry, score
		}
	}

	if best == nil {
		c.misses++
		return nil, 0, false
	}
	best.HitCount++
	c.similarHits++
	return best, bestScore, true
}

// Store caches a deliberation result, evicting the oldest entries
// when the store is full, then persists synchronously.
func (c *Cache) Store(query string, result *domain.Deliberation, tier domain.Tier) error {
	if !c.cfg.Enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[Key(query)] = &Entry{
		Query:     query,
		Result:    result,
		Tier:      tier,
		CreatedAt: c.now(),
	}
	c.enforceSizeLocked()
	return c.persistLocked()
}

// Clear removes all entries and persists the empty state.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	return c.persistLocked()
}

// Stats returns occupancy and hit counters, cleaning expired entries
// first so the count reflects live entries only.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanExpiredLocked()
	total := 0
	for _, e := range c.entries {
		total += e.HitCount
	}
	return Stats{
		Entries:             len(c.entries),
		TotalHits:           total,
		ExactHits:           c.exactHits,
		SimilarHits:         c.similarHits,
		Misses:              c.misses,
		MaxEntries:          c.cfg.MaxEntries,
		SimilarityThreshold: c.cfg.SimilarityThreshold,
	}
}

func (c *Cache) cleanExpiredLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if entry.expired(c.cfg.TTL, now) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) enforceSizeLocked() {
	excess := len(c.entries) - c.cfg.MaxEntries
	if excess <= 0 {
		return
	}
	type aged struct {
		key     string
		created time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key, entry.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].created.Before(all[j].created) })
	for _, a := range all[:excess] {
		delete(c.entries, a.key)
	}
}

func (c *Cache) persistLocked() error {
	if c.cfg.Path == "" {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.cfg.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.cfg.Path, data, 0o644)
}
