// Package cache keeps resolved transformation paths keyed by semantic
// fingerprints so repeat conflicts skip the oracle. Lookup degrades in
// stages: exact key equality, key-structure similarity, then oracle-scored
// descriptor comparison. Entries are never deleted while the process runs;
// purging tombstones them and leaves an audit record in the durable store.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/concord/ai/provider"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/resolution"
	"github.com/teranos/concord/semantic"
	"github.com/teranos/concord/store"
)

// Entry is one cached transformation with its usage accounting.
type Entry struct {
	ID          string                        `json:"id"`
	Source      *semantic.Descriptor          `json:"source,omitempty"`
	Target      *semantic.Descriptor          `json:"target,omitempty"`
	SemanticKey string                        `json:"semantic_key,omitempty"`
	Path        resolution.TransformationPath `json:"path"`
	UsageCount  int                           `json:"usage_count"`
	CreatedAt   time.Time                     `json:"created_at"`
	LastUsed    time.Time                     `json:"last_used"`
	Metadata    map[string]any                `json:"metadata,omitempty"`

	// TombstonedAt marks the entry dead for lookups. The struct stays in
	// the slice so concurrent readers never see it shrink.
	TombstonedAt *time.Time `json:"tombstoned_at,omitempty"`

	// simMemo caches KeySimilarity results under queryKey_entryKey.
	simMemo map[string]float64
}

// Match is a cache hit: the entry, its similarity score against the query,
// and whether the hit came from exact key equality.
type Match struct {
	Entry *Entry  `json:"entry"`
	Score float64 `json:"score"`
	Exact bool    `json:"exact"`
}

// Pass 3 weights for oracle-scored descriptor comparison.
const (
	sourceSimWeight = 0.6
	targetSimWeight = 0.4
)

const (
	defaultHighUsageThreshold = 10
	defaultRecentWindow       = 168 * time.Hour
)

// Cache is an in-memory transformation cache. One RWMutex guards the entry
// slice and the adaptive thresholds; writes only append or mutate fields in
// place, so readers never observe a torn entry.
type Cache struct {
	mu      sync.RWMutex
	entries []*Entry

	similarityThreshold float64
	predictiveThreshold float64
	predictiveEnabled   bool
	highUsageThreshold  int
	recentWindow        time.Duration

	client  provider.AIClient
	oracle  *semantic.SimilarityOracle
	records *store.Store
	logger  *zap.SugaredLogger
}

// New builds a cache from configuration. The record store is optional; when
// present it receives tombstone audit records on purge.
func New(cfg *config.Config, client provider.AIClient, records *store.Store, logger *zap.SugaredLogger) *Cache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	c := &Cache{
		similarityThreshold: config.DefaultSimilarityThreshold,
		predictiveThreshold: config.DefaultPredictiveThreshold,
		highUsageThreshold:  defaultHighUsageThreshold,
		recentWindow:        defaultRecentWindow,
		client:              client,
		oracle:              semantic.NewSimilarityOracle(client, logger),
		records:             records,
		logger:              logger,
	}

	if cfg != nil {
		if cfg.Cache.SimilarityThreshold > 0 {
			c.similarityThreshold = cfg.Cache.SimilarityThreshold
		}
		if cfg.Cache.PredictiveThreshold > 0 {
			c.predictiveThreshold = cfg.Cache.PredictiveThreshold
		}
		c.predictiveEnabled = cfg.Cache.PredictiveEnabled
		if cfg.Cache.HighUsageThreshold > 0 {
			c.highUsageThreshold = cfg.Cache.HighUsageThreshold
		}
		if w := cfg.Cache.RecentWindow(); w > 0 {
			c.recentWindow = w
		}
	}

	return c
}

// SimilarityThreshold returns the current adaptive similarity threshold.
func (c *Cache) SimilarityThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.similarityThreshold
}

// PredictiveThreshold returns the current adaptive predictive threshold.
func (c *Cache) PredictiveThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.predictiveThreshold
}

// Store appends a new entry and returns its id. There is no dedup: storing
// the same pair twice yields two entries, and retrieval prefers the earlier
// one.
func (c *Cache) Store(source, target *semantic.Descriptor, path resolution.TransformationPath, metadata map[string]any) string {
	now := time.Now()
	entry := &Entry{
		ID:          uuid.NewString(),
		Source:      source,
		Target:      target,
		SemanticKey: semantic.MakeKey(source, target),
		Path:        path,
		UsageCount:  1,
		CreatedAt:   now,
		LastUsed:    now,
	}
	if len(metadata) > 0 {
		entry.Metadata = make(map[string]any, len(metadata))
		for k, v := range metadata {
			entry.Metadata[k] = v
		}
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	total := len(c.entries)
	c.mu.Unlock()

	c.logger.Debugw("Cached transformation",
		"entry_id", entry.ID,
		"key_digest", semantic.ShortDigest(entry.SemanticKey),
		"entries", total)

	return entry.ID
}

// Retrieve finds the best live entry for a descriptor pair, or nil when
// nothing meets the threshold. Lookup runs in three passes: exact key
// equality (first inserted wins), memoized key-structure similarity, then
// oracle-scored descriptor comparison over every remaining entry. A
// threshold <= 0 selects the adaptive similarity threshold. Hits bump the
// entry's usage.
func (c *Cache) Retrieve(ctx context.Context, source, target *semantic.Descriptor, threshold float64) *Match {
	if threshold <= 0 {
		threshold = c.SimilarityThreshold()
	}
	queryKey := semantic.MakeKey(source, target)

	// Pass 1: exact key.
	c.mu.RLock()
	var exact *Entry
	for _, e := range c.entries {
		if e.TombstonedAt == nil && e.SemanticKey == queryKey {
			exact = e
			break
		}
	}
	c.mu.RUnlock()

	if exact != nil {
		c.Touch(exact.ID, nil)
		c.logger.Debugw("Cache hit", "pass", 1, "entry_id", exact.ID)
		return &Match{Entry: exact, Score: 1.0, Exact: true}
	}

	// Pass 2: key-structure similarity over keyed entries. Scores are
	// memoized on the entry, so the scan holds the write lock.
	var (
		best      *Entry
		bestScore float64
	)
	c.mu.Lock()
	for _, e := range c.entries {
		if e.TombstonedAt != nil || e.SemanticKey == "" {
			continue
		}
		memoKey := queryKey + "_" + e.SemanticKey
		score, ok := e.simMemo[memoKey]
		if !ok {
			score = semantic.KeySimilarity(queryKey, e.SemanticKey)
			if e.simMemo == nil {
				e.simMemo = make(map[string]float64)
			}
			e.simMemo[memoKey] = score
		}
		if score > bestScore {
			best, bestScore = e, score
		}
	}
	c.mu.Unlock()

	if best != nil && bestScore >= threshold {
		c.Touch(best.ID, nil)
		c.logger.Debugw("Cache hit", "pass", 2, "entry_id", best.ID, "score", bestScore)
		return &Match{Entry: best, Score: bestScore, Exact: false}
	}

	// Pass 3: oracle-scored descriptor comparison, including entries that
	// never had a key. Oracle calls run outside the lock.
	c.mu.RLock()
	candidates := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.TombstonedAt == nil {
			candidates = append(candidates, e)
		}
	}
	c.mu.RUnlock()

	best, bestScore = nil, 0
	for _, e := range candidates {
		score := sourceSimWeight*c.oracle.Score(ctx, source, e.Source) +
			targetSimWeight*c.oracle.Score(ctx, target, e.Target)
		if score > bestScore {
			best, bestScore = e, score
		}
	}
	if best == nil || bestScore < threshold {
		return nil
	}

	c.mu.Lock()
	if best.SemanticKey == "" {
		best.SemanticKey = semantic.MakeKey(best.Source, best.Target)
	}
	c.mu.Unlock()

	c.Touch(best.ID, nil)
	c.logger.Debugw("Cache hit", "pass", 3, "entry_id", best.ID, "score", bestScore)
	return &Match{Entry: best, Score: bestScore, Exact: false}
}

// Touch bumps an entry's usage count, stamps its last use, and merges
// metadata. Returns false for an unknown or tombstoned id; nothing is
// altered in that case.
func (c *Cache) Touch(id string, metadata map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.ID != id || e.TombstonedAt != nil {
			continue
		}
		e.UsageCount++
		e.LastUsed = time.Now()
		if len(metadata) > 0 {
			if e.Metadata == nil {
				e.Metadata = make(map[string]any, len(metadata))
			}
			for k, v := range metadata {
				e.Metadata[k] = v
			}
		}
		return true
	}

	return false
}

// MostUsed returns live entries ranked by usage count. limit <= 0 returns
// every live entry.
func (c *Cache) MostUsed(limit int) []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ranked := c.liveLocked()
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].UsageCount > ranked[j].UsageCount })
	return trim(ranked, limit)
}

// MostRecent returns live entries ranked by last use, newest first.
func (c *Cache) MostRecent(limit int) []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ranked := c.liveLocked()
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].LastUsed.After(ranked[j].LastUsed) })
	return trim(ranked, limit)
}

func (c *Cache) liveLocked() []*Entry {
	live := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.TombstonedAt == nil {
			live = append(live, e)
		}
	}
	return live
}

func trim(entries []*Entry, limit int) []*Entry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

// tombstoneRecord is the audit payload appended to the durable store when
// an entry is tombstoned.
type tombstoneRecord struct {
	EntryID      string    `json:"entry_id"`
	SemanticKey  string    `json:"semantic_key,omitempty"`
	UsageCount   int       `json:"usage_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsed     time.Time `json:"last_used"`
	TombstonedAt time.Time `json:"tombstoned_at"`
}

// Purge tombstones live entries whose last use is strictly before the
// cutoff, falling back to creation time when an entry was never used. A
// zero cutoff tombstones every live entry. Audit records are best effort.
// Returns the number of entries tombstoned.
func (c *Cache) Purge(olderThan time.Time) int {
	now := time.Now()

	c.mu.Lock()
	var tombstoned []*Entry
	for _, e := range c.entries {
		if e.TombstonedAt != nil {
			continue
		}
		ref := e.LastUsed
		if ref.IsZero() {
			ref = e.CreatedAt
		}
		if olderThan.IsZero() || ref.Before(olderThan) {
			ts := now
			e.TombstonedAt = &ts
			tombstoned = append(tombstoned, e)
		}
	}
	c.mu.Unlock()

	if len(tombstoned) == 0 {
		return 0
	}

	if c.records != nil {
		for _, e := range tombstoned {
			rec := tombstoneRecord{
				EntryID:      e.ID,
				SemanticKey:  e.SemanticKey,
				UsageCount:   e.UsageCount,
				CreatedAt:    e.CreatedAt,
				LastUsed:     e.LastUsed,
				TombstonedAt: now,
			}
			if _, err := c.records.Append(store.CategoryTombstone, rec); err != nil {
				c.logger.Warnw("Failed to record tombstone", "entry_id", e.ID, "error", err)
			}
		}
	}

	c.logger.Infow("Purged cache entries", "tombstoned", len(tombstoned), "cutoff", olderThan)
	return len(tombstoned)
}

// Stats is a point-in-time cache summary for display.
type Stats struct {
	TotalEntries        int     `json:"total_entries"`
	LiveEntries         int     `json:"live_entries"`
	TombstonedEntries   int     `json:"tombstoned_entries"`
	TotalUsage          int     `json:"total_usage"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	PredictiveThreshold float64 `json:"predictive_threshold"`
}

// Stats summarizes the cache. TotalUsage counts live entries only.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		TotalEntries:        len(c.entries),
		SimilarityThreshold: c.similarityThreshold,
		PredictiveThreshold: c.predictiveThreshold,
	}
	for _, e := range c.entries {
		if e.TombstonedAt == nil {
			s.LiveEntries++
			s.TotalUsage += e.UsageCount
		} else {
			s.TombstonedEntries++
		}
	}
	return s
}
