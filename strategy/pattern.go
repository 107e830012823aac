package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/teranos/concord/cache"
	"github.com/teranos/concord/errors"
	"github.com/teranos/concord/resolution"
	"github.com/teranos/concord/semantic"
)

// PatternMatchingName identifies the pattern matching strategy.
const PatternMatchingName = "pattern_matching"

// patternRetrieveThreshold is the cache similarity floor for replay. It
// sits below the cache's own adaptive threshold: a path can be worth
// replaying at lower similarity than a full cached result is worth
// returning verbatim.
const patternRetrieveThreshold = 0.7

// supportedPathVersions gates replay to 1.x transformation paths. A path
// written by a newer major schema fails the call rather than replaying
// steps it half understands.
const supportedPathVersions = "^1"

// TransformFunc is a stored pure function applied by
// structure_transformation steps. Implementations must not mutate their
// input.
type TransformFunc func(data map[string]any) (map[string]any, error)

// PatternMatching resolves a conflict by replaying a cached
// transformation path from a similar descriptor pair. Confidence is the
// retrieval similarity score: the further the cached pair is from this
// one, the less the replayed result is trusted.
type PatternMatching struct {
	cache  *cache.Cache
	logger *zap.SugaredLogger

	mu         sync.RWMutex
	transforms map[string]TransformFunc
}

// NewPatternMatching creates the strategy over a shared cache. The
// transform registry starts empty; structure_transformation steps only
// replay after RegisterTransform installs their functions.
func NewPatternMatching(c *cache.Cache, logger *zap.SugaredLogger) *PatternMatching {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PatternMatching{
		cache:      c,
		logger:     logger,
		transforms: make(map[string]TransformFunc),
	}
}

func (s *PatternMatching) Name() string { return PatternMatchingName }

func (s *PatternMatching) Priority() int { return 2 }

// RegisterTransform installs a named pure function for
// structure_transformation steps, replacing any previous registration.
func (s *PatternMatching) RegisterTransform(name string, fn TransformFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transforms[name] = fn
}

func (s *PatternMatching) transform(name string) TransformFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transforms[name]
}

// CanResolve reports whether the cache holds a path similar enough to
// replay. The probe bumps the matched entry's usage, as any retrieval
// does.
func (s *PatternMatching) CanResolve(ctx context.Context, src, tgt *semantic.Descriptor) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.Retrieve(ctx, src, tgt, patternRetrieveThreshold) != nil
}

// Resolve re-queries the cache, gates the best candidate's path schema
// version, and replays its steps over a copy of the source object. Every
// failure mode reports through the result with a pattern_matching_error
// marker, never as a returned error.
func (s *PatternMatching) Resolve(ctx context.Context, srcData, tgtData any, src, tgt *semantic.Descriptor) *resolution.Result {
	if s.cache == nil {
		return s.failure("no_pattern", "no cache configured for pattern replay")
	}

	match := s.cache.Retrieve(ctx, src, tgt, patternRetrieveThreshold)
	if match == nil {
		return s.failure("no_pattern",
			"no cached transformation path is similar enough to replay")
	}

	sourceMap, ok := srcData.(map[string]any)
	if !ok {
		return s.failure("invalid_source",
			fmt.Sprintf("pattern replay requires object data, got %T", srcData))
	}
	// A non-object target only matters to conflict_resolution steps,
	// which merge nothing for it.
	targetMap, _ := tgtData.(map[string]any)

	path := match.Entry.Path
	if err := checkPathVersion(path); err != nil {
		return s.failure("path_incompatible", err.Error())
	}

	resolved, notes, err := s.replay(path, sourceMap, targetMap)
	if err != nil {
		s.logger.Warnw("Path replay failed",
			"entry_id", match.Entry.ID,
			"score", match.Score,
			"error", err)
		return s.failure("replay_error", err.Error())
	}

	s.logger.Debugw("Replayed cached path",
		"entry_id", match.Entry.ID,
		"score", match.Score,
		"steps", len(path.Steps))

	return &resolution.Result{
		Success:           true,
		ResolvedData:      resolved,
		StrategyUsed:      PatternMatchingName,
		Confidence:        match.Score,
		ResolvedConflicts: notes,
		Metadata: resolution.Meta{
			TransformationPath: &path,
			Extra: map[string]any{
				"entry_id":   match.Entry.ID,
				"similarity": match.Score,
			},
		},
	}
}

// replay runs the path's steps in order over a copy of the source object.
// field_mapping renames a field, structure_transformation applies a
// registered function, conflict_resolution shallow-merges the working
// data with the target object and the step's resolution map (target then
// resolution win). Any step it cannot honor aborts the whole replay.
func (s *PatternMatching) replay(path resolution.TransformationPath, source, target map[string]any) (map[string]any, []resolution.ConflictNote, error) {
	data := make(map[string]any, len(source))
	for k, v := range source {
		data[k] = v
	}

	var notes []resolution.ConflictNote
	for i, step := range path.Steps {
		switch step.Type {
		case resolution.StepFieldMapping:
			v, ok := data[step.From]
			if !ok {
				continue
			}
			delete(data, step.From)
			data[step.To] = v
			notes = append(notes, resolution.ConflictNote{
				Type:        "structural",
				Field:       step.From,
				Description: fmt.Sprintf("renamed %s to %s", step.From, step.To),
				Resolution:  "replayed cached field mapping",
			})

		case resolution.StepStructureTransformation:
			fn := s.transform(step.Name)
			if fn == nil {
				return nil, nil, errors.Newf("step %d: unknown transformation %q", i, step.Name)
			}
			out, err := fn(data)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "step %d: transformation %q failed", i, step.Name)
			}
			data = out
			notes = append(notes, resolution.ConflictNote{
				Type:        "structural",
				Description: fmt.Sprintf("applied transformation %s", step.Name),
				Resolution:  "replayed stored transformation",
			})

		case resolution.StepConflictResolution:
			merged := make(map[string]any, len(data)+len(target)+len(step.Resolution))
			for k, v := range data {
				merged[k] = v
			}
			for k, v := range target {
				merged[k] = v
			}
			for k, v := range step.Resolution {
				merged[k] = v
				notes = append(notes, resolution.ConflictNote{
					Type:        "value",
					Field:       k,
					Description: fmt.Sprintf("conflicting values for %s", k),
					Resolution:  "cached resolution value applied",
				})
			}
			data = merged

		default:
			return nil, nil, errors.Wrapf(errors.ErrUnknownStepType, "step %d: %q", i, step.Type)
		}
	}
	return data, notes, nil
}

// failure builds the pattern strategy's uniform failure shape: a
// zero-confidence result marked pattern_matching_error in the metadata.
func (s *PatternMatching) failure(conflictType, description string) *resolution.Result {
	res := resolution.Failure(PatternMatchingName, conflictType, description)
	res.Metadata.Extra = map[string]any{"error": "pattern_matching_error"}
	return res
}

// checkPathVersion verifies the path's schema version sits inside the
// supported replay range.
func checkPathVersion(path resolution.TransformationPath) error {
	ver, err := semver.NewVersion(path.SchemaVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrPathIncompatible,
			"unparseable path schema version %q", path.SchemaVersion)
	}
	constraint, err := semver.NewConstraint(supportedPathVersions)
	if err != nil {
		return errors.Wrap(err, "invalid path version constraint")
	}
	if !constraint.Check(ver) {
		return errors.Wrapf(errors.ErrPathIncompatible,
			"path schema %s outside supported range %s", path.SchemaVersion, supportedPathVersions)
	}
	return nil
}

var _ Strategy = (*PatternMatching)(nil)
