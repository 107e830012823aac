package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/concord/ai/openrouter"
	"github.com/teranos/concord/ai/parse"
	"github.com/teranos/concord/ai/provider"
	"github.com/teranos/concord/resolution"
	"github.com/teranos/concord/semantic"
)

// OracleFallbackName identifies the oracle fallback strategy. Dispatch
// hands it every conflict no other strategy volunteers for.
const OracleFallbackName = "oracle_fallback"

const conflictSystemPrompt = "You resolve semantic conflicts between two data representations. " +
	"Respond with JSON: {\"resolvedData\": <object>, \"confidence\": <number from 0 to 1>, " +
	"\"resolvedConflicts\": [...], \"unresolvedConflicts\": [...], \"summary\": <string>}. " +
	"Each conflict list element is a short string or an object with type, field, description, and resolution. " +
	"Set \"success\": false if the conflict cannot be resolved. No explanation, just the JSON."

// OracleFallback resolves a conflict by asking the inference oracle to
// merge the two representations. It is the lowest priority strategy and
// the only one that never declines a pair; whatever comes back is
// validated here, and anything unusable degrades to a zero-confidence
// failure rather than an error.
type OracleFallback struct {
	client provider.AIClient
	logger *zap.SugaredLogger
}

// NewOracleFallback wraps an oracle client. A nil client is allowed and
// makes every Resolve call fail with oracle_unavailable.
func NewOracleFallback(client provider.AIClient, logger *zap.SugaredLogger) *OracleFallback {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &OracleFallback{client: client, logger: logger}
}

func (s *OracleFallback) Name() string { return OracleFallbackName }

func (s *OracleFallback) Priority() int { return 1 }

// CanResolve always volunteers; the oracle is the strategy of last resort.
func (s *OracleFallback) CanResolve(ctx context.Context, src, tgt *semantic.Descriptor) bool {
	return true
}

// Resolve asks the oracle to merge the source into the target's shape and
// interprets the response. A call that fails outright is an error outcome;
// a response that arrives but cannot be used degrades to a zero-confidence
// failure under the strategy's own name.
func (s *OracleFallback) Resolve(ctx context.Context, srcData, tgtData any, src, tgt *semantic.Descriptor) *resolution.Result {
	if s.client == nil {
		return resolution.Failure(OracleFallbackName, "oracle_unavailable",
			"no oracle client configured")
	}

	prompt, err := conflictPrompt(srcData, tgtData, src, tgt)
	if err != nil {
		return resolution.Failure(OracleFallbackName, "invalid_request", err.Error())
	}

	resp, err := s.client.Chat(ctx, openrouter.ChatRequest{
		SystemPrompt: conflictSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		s.logger.Warnw("Conflict oracle call failed",
			"source_type", semantic.TypeLabel(src),
			"target_type", semantic.TypeLabel(tgt),
			"error", err)
		return resolution.Failure(resolution.StrategyError, "oracle_error", err.Error())
	}

	return s.interpret(resp.Content)
}

// oraclePayload is the response shape the conflict prompt asks for.
// Conflict lists accept bare strings alongside full note objects.
type oraclePayload struct {
	Success             *bool                     `json:"success"`
	ResolvedData        any                       `json:"resolvedData"`
	Confidence          float64                   `json:"confidence"`
	ResolvedConflicts   []resolution.ConflictNote `json:"resolvedConflicts"`
	UnresolvedConflicts []resolution.ConflictNote `json:"unresolvedConflicts"`
	Summary             string                    `json:"summary"`
}

// interpret validates an oracle response. An explicit success:false or a
// payload with no resolvedData is a non-fatal decline; a response with no
// recoverable JSON object at all is an unparseable_response failure.
func (s *OracleFallback) interpret(content string) *resolution.Result {
	var payload oraclePayload
	if err := parse.ExtractInto(content, &payload); err != nil {
		s.logger.Warnw("Unparseable conflict response",
			"response_length", len(content),
			"error", err)
		return resolution.Failure(OracleFallbackName, "unparseable_response",
			"oracle response did not contain a usable JSON object")
	}

	if (payload.Success != nil && !*payload.Success) || payload.ResolvedData == nil {
		description := "oracle declined to resolve the conflict"
		if payload.Summary != "" {
			description = payload.Summary
		}
		res := resolution.Failure(OracleFallbackName, "oracle_declined", description)
		res.UnresolvedConflicts = append(res.UnresolvedConflicts, payload.UnresolvedConflicts...)
		return res
	}

	confidence := payload.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result := &resolution.Result{
		Success:             true,
		ResolvedData:        payload.ResolvedData,
		StrategyUsed:        OracleFallbackName,
		Confidence:          confidence,
		ResolvedConflicts:   payload.ResolvedConflicts,
		UnresolvedConflicts: payload.UnresolvedConflicts,
	}
	if payload.Summary != "" {
		result.Metadata.Extra = map[string]any{"summary": payload.Summary}
	}
	return result
}

// conflictPrompt lays out both descriptors and both live values for the
// oracle.
func conflictPrompt(srcData, tgtData any, src, tgt *semantic.Descriptor) (string, error) {
	srcDesc, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return "", err
	}
	tgtDesc, err := json.MarshalIndent(tgt, "", "  ")
	if err != nil {
		return "", err
	}
	srcJSON, err := json.MarshalIndent(srcData, "", "  ")
	if err != nil {
		return "", err
	}
	tgtJSON, err := json.MarshalIndent(tgtData, "", "  ")
	if err != nil {
		return "", err
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Source entity (%s):\n%s\n\nSource data:\n%s\n\n",
		semantic.TypeLabel(src), srcDesc, srcJSON)
	fmt.Fprintf(&prompt, "Target entity (%s):\n%s\n\nTarget data:\n%s\n\n",
		semantic.TypeLabel(tgt), tgtDesc, tgtJSON)
	prompt.WriteString("Merge the source data into the target's shape, resolving the semantic conflicts between them.")
	return prompt.String(), nil
}

var _ Strategy = (*OracleFallback)(nil)
