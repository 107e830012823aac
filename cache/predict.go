package cache

import (
	"context"
	"sort"
	"time"

	"github.com/teranos/concord/semantic"
)

// Prediction pairs an entry with its prefetch score.
type Prediction struct {
	Entry *Entry  `json:"entry"`
	Score float64 `json:"score"`
}

// Prefetch ranking weights.
const (
	predictSimWeight     = 0.5
	predictRecencyWeight = 0.25
	predictUsageWeight   = 0.25
)

// candidateDepth is how many entries each ranking contributes to the
// prediction candidate pool.
const candidateDepth = 5

// PredictNeeded ranks cached transformations likely to be needed given a
// context descriptor. Returns nil when predictive prefetch is disabled.
// Candidates are the union of the most recent and most used entries; each
// is scored from oracle similarity against its source descriptor, recency
// within the recent window, and usage relative to the high-usage mark.
// Only scores at or above the predictive threshold survive, sorted
// descending.
func (c *Cache) PredictNeeded(ctx context.Context, contextDesc *semantic.Descriptor) []Prediction {
	c.mu.RLock()
	enabled := c.predictiveEnabled
	threshold := c.predictiveThreshold
	window := c.recentWindow
	highUsage := c.highUsageThreshold

	type candidate struct {
		entry    *Entry
		source   *semantic.Descriptor
		usage    int
		lastUsed time.Time
	}
	snap := make([]candidate, 0, len(c.entries))
	for _, e := range c.entries {
		if e.TombstonedAt == nil {
			snap = append(snap, candidate{entry: e, source: e.Source, usage: e.UsageCount, lastUsed: e.LastUsed})
		}
	}
	c.mu.RUnlock()

	if !enabled || len(snap) == 0 {
		return nil
	}

	byRecency := append([]candidate(nil), snap...)
	sort.SliceStable(byRecency, func(i, j int) bool { return byRecency[i].lastUsed.After(byRecency[j].lastUsed) })
	if len(byRecency) > candidateDepth {
		byRecency = byRecency[:candidateDepth]
	}
	byUsage := append([]candidate(nil), snap...)
	sort.SliceStable(byUsage, func(i, j int) bool { return byUsage[i].usage > byUsage[j].usage })
	if len(byUsage) > candidateDepth {
		byUsage = byUsage[:candidateDepth]
	}

	seen := make(map[string]bool, candidateDepth*2)
	var pool []candidate
	for _, list := range [][]candidate{byRecency, byUsage} {
		for _, cand := range list {
			if seen[cand.entry.ID] {
				continue
			}
			seen[cand.entry.ID] = true
			pool = append(pool, cand)
		}
	}

	now := time.Now()
	var predictions []Prediction
	for _, cand := range pool {
		recency := 1 - now.Sub(cand.lastUsed).Hours()/window.Hours()
		if recency < 0 {
			recency = 0
		}
		usage := float64(cand.usage) / float64(highUsage)
		if usage > 1 {
			usage = 1
		}

		score := predictSimWeight*c.oracle.Score(ctx, contextDesc, cand.source) +
			predictRecencyWeight*recency +
			predictUsageWeight*usage
		if score >= threshold {
			predictions = append(predictions, Prediction{Entry: cand.entry, Score: score})
		}
	}

	sort.SliceStable(predictions, func(i, j int) bool { return predictions[i].Score > predictions[j].Score })
	return predictions
}
