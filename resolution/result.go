// Package resolution holds the shared vocabulary of the resolution pipeline:
// the result of a resolution call, the conflict notes attached to it, and the
// replayable transformation path that converts source-shaped data into
// target-shaped data.
package resolution

import (
	"bytes"
	"encoding/json"
)

// Result is the outcome of exactly one strategy invocation. It is immutable
// after return; callers check Success and UnresolvedConflicts rather than a
// Go error.
type Result struct {
	Success             bool           `json:"success"`
	ResolvedData        any            `json:"resolved_data,omitempty"`
	StrategyUsed        string         `json:"strategy_used"`
	Confidence          float64        `json:"confidence"` // [0,1]
	ResolvedConflicts   []ConflictNote `json:"resolved_conflicts,omitempty"`
	UnresolvedConflicts []ConflictNote `json:"unresolved_conflicts,omitempty"`
	Metadata            Meta           `json:"metadata"`
}

// Meta carries execution details alongside a Result.
type Meta struct {
	ExecutionTimeMs    int64               `json:"execution_time_ms"`
	TransformationPath *TransformationPath `json:"transformation_path,omitempty"`
	Extra              map[string]any      `json:"extra,omitempty"`
}

// ConflictNote describes a single conflict a strategy saw, resolved or not.
type ConflictNote struct {
	Type        string `json:"type,omitempty"`
	Field       string `json:"field,omitempty"`
	Description string `json:"description,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

// UnmarshalJSON accepts both object form and the bare strings some oracle
// responses put in conflict lists; a bare string becomes the Description.
func (n *ConflictNote) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = ConflictNote{Description: s}
		return nil
	}

	type plain ConflictNote
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*n = ConflictNote(p)
	return nil
}

// StrategyError labels results produced by the pipeline's error boundary
// rather than by a strategy: a panic during dispatch, or an oracle call
// that failed outright before any answer arrived.
const StrategyError = "error"

// Failure builds a zero-confidence failed Result with one unresolved
// conflict. Strategy-local error conditions report through this rather than
// returning a Go error.
func Failure(strategyName, conflictType, description string) *Result {
	return &Result{
		Success:      false,
		StrategyUsed: strategyName,
		Confidence:   0,
		UnresolvedConflicts: []ConflictNote{
			{Type: conflictType, Description: description},
		},
	}
}
