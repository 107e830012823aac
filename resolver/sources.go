package resolver

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/teranos/concord/config"
	"github.com/teranos/concord/errors"
	"github.com/teranos/concord/store"
)

// Relevance is a weighted blend of keyword overlap with the source's
// description and with its capability list.
const (
	descriptionWeight = 0.6
	capabilityWeight  = 0.4
)

// SourceCandidate is a registered data source ranked against an intent.
type SourceCandidate struct {
	SourceID  string         `json:"source_id"`
	Relevance float64        `json:"relevance"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RegisterSource records a data source so FindCandidateSources can rank it.
// Re-registering a source id replaces the earlier description.
func (r *Resolver) RegisterSource(src store.DataSource) (int64, error) {
	if r.records == nil {
		return 0, errors.New("no record store configured")
	}
	return r.records.RegisterDataSource(src)
}

// FindCandidateSources ranks the registered data sources against a natural
// language intent and returns the ones above the configured relevance
// floor, best first. limit > 0 truncates the list. Ranking is local
// keyword overlap; store failures are logged and yield an empty list.
func (r *Resolver) FindCandidateSources(ctx context.Context, intent string, limit int) []SourceCandidate {
	terms := tokenize(intent)
	if len(terms) == 0 || r.records == nil {
		return nil
	}

	sources, err := r.records.DataSources(0)
	if err != nil {
		r.logger.Warnw("Failed to load data sources", "error", err)
		return nil
	}

	floor := r.cfg.Resolver.MinSourceRelevance
	if floor <= 0 {
		floor = config.DefaultMinSourceRelevance
	}

	var candidates []SourceCandidate
	for _, src := range sources {
		capTerms := make(map[string]bool)
		for _, capability := range src.Capabilities {
			for t := range tokenize(capability) {
				capTerms[t] = true
			}
		}

		score := descriptionWeight*overlap(terms, tokenize(src.Description)) +
			capabilityWeight*overlap(terms, capTerms)
		if score < floor {
			continue
		}

		candidates = append(candidates, SourceCandidate{
			SourceID:  src.SourceID,
			Relevance: score,
			Metadata:  src.Metadata,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Relevance > candidates[j].Relevance
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// tokenize lowercases text and splits it on any non-alphanumeric rune.
func tokenize(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		terms[tok] = true
	}
	return terms
}

// overlap is the fraction of intent terms present in the document terms.
func overlap(intent, doc map[string]bool) float64 {
	if len(intent) == 0 || len(doc) == 0 {
		return 0
	}
	shared := 0
	for t := range intent {
		if doc[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(intent))
}
