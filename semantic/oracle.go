package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/concord/ai/openrouter"
	"github.com/teranos/concord/ai/parse"
	"github.com/teranos/concord/ai/provider"
)

// similarityFallback stands in for a score whenever the oracle fails or
// returns something unusable. Below every matching threshold default, so
// a degraded probe can suggest but never force a match.
const similarityFallback = 0.3

const similaritySystemPrompt = "You judge semantic similarity between two data entity descriptors. " +
	"Respond with JSON: {\"score\": <number from 0 to 1>} where 1 means the entities carry the same meaning. " +
	"No explanation, just the JSON."

// SimilarityOracle scores descriptor pairs with the inference oracle.
// Score never returns an error; failures degrade to a fixed low score so
// cache scans and prediction stay total.
type SimilarityOracle struct {
	client provider.AIClient
	logger *zap.SugaredLogger
}

// NewSimilarityOracle wraps an oracle client for similarity judgments.
// A nil client is allowed and makes every Score call return the fallback.
func NewSimilarityOracle(client provider.AIClient, logger *zap.SugaredLogger) *SimilarityOracle {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SimilarityOracle{client: client, logger: logger}
}

// Score asks the oracle how semantically similar two descriptors are,
// clamped to [0, 1].
func (o *SimilarityOracle) Score(ctx context.Context, a, b *Descriptor) float64 {
	if o == nil || o.client == nil {
		return similarityFallback
	}

	prompt, err := similarityPrompt(a, b)
	if err != nil {
		o.logger.Debugw("Failed to build similarity prompt", "error", err)
		return similarityFallback
	}

	resp, err := o.client.Chat(ctx, openrouter.ChatRequest{
		SystemPrompt: similaritySystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		o.logger.Debugw("Similarity oracle call failed", "error", err)
		return similarityFallback
	}

	score, err := parse.ExtractScore(resp.Content)
	if err != nil {
		o.logger.Debugw("Similarity response had no score",
			"response_length", len(resp.Content))
		return similarityFallback
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func similarityPrompt(a, b *Descriptor) (string, error) {
	aJSON, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", err
	}
	bJSON, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", err
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Descriptor A:\n%s\n\n", aJSON)
	fmt.Fprintf(&prompt, "Descriptor B:\n%s\n\n", bJSON)
	prompt.WriteString("How semantically similar are the entities these describe?")
	return prompt.String(), nil
}
