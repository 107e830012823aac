package resolution

// PathSchemaVersion is the schema version written into newly built
// transformation paths. Replay accepts any 1.x path.
const PathSchemaVersion = "1.0.0"

// Transformation step types.
const (
	StepFieldMapping            = "field_mapping"
	StepStructureTransformation = "structure_transformation"
	StepConflictResolution      = "conflict_resolution"
)

// TransformationPath is a replayable recipe: an ordered list of steps that
// converts data shaped like a source descriptor into data shaped like a
// target descriptor. Opaque to the cache, replayed by the pattern strategy.
type TransformationPath struct {
	SchemaVersion string          `json:"schema_version"`
	Steps         []TransformStep `json:"steps"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// TransformStep is one replay step. Which fields are meaningful depends on
// Type: field_mapping uses From/To, structure_transformation names a
// registered pure function, conflict_resolution carries a resolution map
// whose keys win a shallow merge.
type TransformStep struct {
	Type       string         `json:"type"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	Name       string         `json:"name,omitempty"`
	Resolution map[string]any `json:"resolution,omitempty"`
}

// NewPath builds a path at the current schema version.
func NewPath(steps ...TransformStep) *TransformationPath {
	return &TransformationPath{
		SchemaVersion: PathSchemaVersion,
		Steps:         steps,
	}
}

// IsEmpty reports whether the path carries no steps.
func (p *TransformationPath) IsEmpty() bool {
	return p == nil || len(p.Steps) == 0
}
