package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teranos/concord/ai/openrouter"
	"github.com/teranos/concord/ai/parse"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/semantic"
)

// thresholdStep is how far one recommendation moves an adaptive threshold.
const thresholdStep = 0.05

const analysisSystemPrompt = `You analyze usage of a semantic transformation cache. ` +
	`Respond with JSON: {"patterns": [...], "insights": [...], "recommendations": [...]} ` +
	`where each element is a short sentence. No explanation, just the JSON.`

// UsageAnalysis is the oracle's read on cache usage. InsightsFailed is set
// when the oracle was unavailable or its response carried no usable object.
type UsageAnalysis struct {
	Patterns        []string `json:"patterns"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	InsightsFailed  bool     `json:"insights_failed,omitempty"`
}

// AnalyzeUsage asks the oracle to summarize usage patterns and applies any
// threshold recommendations it makes. Never returns an error: oracle or
// parse failure yields an empty analysis with InsightsFailed set, and an
// empty cache yields an empty analysis without asking at all.
func (c *Cache) AnalyzeUsage(ctx context.Context) *UsageAnalysis {
	prompt, live := c.usagePrompt()
	if live == 0 {
		return &UsageAnalysis{}
	}
	if c.client == nil {
		return &UsageAnalysis{InsightsFailed: true}
	}

	resp, err := c.client.Chat(ctx, openrouter.ChatRequest{
		SystemPrompt: analysisSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		c.logger.Warnw("Usage analysis oracle call failed", "error", err)
		return &UsageAnalysis{InsightsFailed: true}
	}

	var analysis UsageAnalysis
	if err := parse.ExtractInto(resp.Content, &analysis); err != nil {
		c.logger.Warnw("Usage analysis response unparseable", "error", err)
		return &UsageAnalysis{InsightsFailed: true}
	}

	c.applyRecommendations(analysis.Recommendations)
	return &analysis
}

type entryStat struct {
	digest   string
	usage    int
	lastUsed time.Time
}

// usagePrompt renders a usage summary for the oracle and reports how many
// live entries it covers.
func (c *Cache) usagePrompt() (string, int) {
	c.mu.RLock()
	stats := make([]entryStat, 0, len(c.entries))
	totalUsage := 0
	for _, e := range c.entries {
		if e.TombstonedAt != nil {
			continue
		}
		stats = append(stats, entryStat{
			digest:   semantic.ShortDigest(e.SemanticKey),
			usage:    e.UsageCount,
			lastUsed: e.LastUsed,
		})
		totalUsage += e.UsageCount
	}
	similarity := c.similarityThreshold
	predictive := c.predictiveThreshold
	c.mu.RUnlock()

	if len(stats) == 0 {
		return "", 0
	}

	const top = 5
	byUsage := append([]entryStat(nil), stats...)
	sort.SliceStable(byUsage, func(i, j int) bool { return byUsage[i].usage > byUsage[j].usage })
	if len(byUsage) > top {
		byUsage = byUsage[:top]
	}
	byRecency := append([]entryStat(nil), stats...)
	sort.SliceStable(byRecency, func(i, j int) bool { return byRecency[i].lastUsed.After(byRecency[j].lastUsed) })
	if len(byRecency) > top {
		byRecency = byRecency[:top]
	}

	now := time.Now()
	var b strings.Builder
	fmt.Fprintf(&b, "The cache holds %d live entries with %d total uses.\n", len(stats), totalUsage)
	fmt.Fprintf(&b, "Similarity threshold: %.2f. Predictive threshold: %.2f.\n\n", similarity, predictive)

	b.WriteString("Most used entries:\n")
	for _, s := range byUsage {
		fmt.Fprintf(&b, "- %s: %d uses, last used %s ago\n", s.digest, s.usage, ageOf(now, s.lastUsed))
	}

	b.WriteString("\nMost recently used entries:\n")
	for _, s := range byRecency {
		fmt.Fprintf(&b, "- %s: %d uses, last used %s ago\n", s.digest, s.usage, ageOf(now, s.lastUsed))
	}

	b.WriteString("\nSummarize the usage patterns, any insights about retrieval quality, " +
		"and concrete recommendations. If lookups seem too loose or too strict, " +
		"recommend raising or lowering the similarity threshold or the predictive threshold.")

	return b.String(), len(stats)
}

func ageOf(now, t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return now.Sub(t).Round(time.Minute)
}

// applyRecommendations moves the adaptive thresholds when a recommendation
// asks for it. Direction words are matched loosely; the step is fixed and
// the result clamped to the adaptive range.
func (c *Cache) applyRecommendations(recs []string) {
	for _, rec := range recs {
		text := strings.ToLower(rec)

		var delta float64
		switch {
		case strings.Contains(text, "rais") || strings.Contains(text, "increas"):
			delta = thresholdStep
		case strings.Contains(text, "lower") || strings.Contains(text, "decreas") || strings.Contains(text, "reduc"):
			delta = -thresholdStep
		default:
			continue
		}

		switch {
		case strings.Contains(text, "similarity threshold"):
			c.adjustSimilarityThreshold(delta)
		case strings.Contains(text, "predictive threshold"):
			c.adjustPredictiveThreshold(delta)
		}
	}
}

func (c *Cache) adjustSimilarityThreshold(delta float64) {
	c.mu.Lock()
	value := clampThreshold(c.similarityThreshold + delta)
	changed := value != c.similarityThreshold
	c.similarityThreshold = value
	c.mu.Unlock()

	if !changed {
		return
	}
	c.logger.Infow("Adjusted similarity threshold", "threshold", value)
	if err := config.UpdateSimilarityThreshold(value); err != nil {
		c.logger.Warnw("Failed to persist similarity threshold", "error", err)
	}
}

func (c *Cache) adjustPredictiveThreshold(delta float64) {
	c.mu.Lock()
	value := clampThreshold(c.predictiveThreshold + delta)
	changed := value != c.predictiveThreshold
	c.predictiveThreshold = value
	c.mu.Unlock()

	if !changed {
		return
	}
	c.logger.Infow("Adjusted predictive threshold", "threshold", value)
	if err := config.UpdatePredictiveThreshold(value); err != nil {
		c.logger.Warnw("Failed to persist predictive threshold", "error", err)
	}
}

func clampThreshold(v float64) float64 {
	if v < config.MinAdaptiveThreshold {
		return config.MinAdaptiveThreshold
	}
	if v > config.MaxAdaptiveThreshold {
		return config.MaxAdaptiveThreshold
	}
	return v
}
