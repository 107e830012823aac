package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/concord/resolution"
	"github.com/teranos/concord/semantic"
)

// ExplicitMappingName identifies the explicit mapping strategy.
const ExplicitMappingName = "explicit_mapping"

// MappingFunc transforms a source-shaped object into a target-shaped one.
// Implementations must not mutate their input.
type MappingFunc func(source map[string]any) (map[string]any, error)

// MappingPair names one registered srcType/tgtType combination.
type MappingPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ExplicitMapping resolves a conflict by applying a pre-registered
// transformation function for the exact type pair. It is the highest
// priority strategy: when somebody wrote the mapping down, nothing
// fuzzier gets a say.
//
// Two registration layers back it. Programmatic registrations come from
// RegisterMapping and survive rule reloads. Declarative rules come from a
// TOML file and are swapped wholesale on every load; a programmatic
// registration shadows a rule for the same pair.
type ExplicitMapping struct {
	mu       sync.RWMutex
	mappings map[string]map[string]MappingFunc
	rules    map[string]map[string]MappingFunc
	logger   *zap.SugaredLogger
}

// NewExplicitMapping creates the strategy with no registered mappings.
func NewExplicitMapping(logger *zap.SugaredLogger) *ExplicitMapping {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ExplicitMapping{
		mappings: make(map[string]map[string]MappingFunc),
		rules:    make(map[string]map[string]MappingFunc),
		logger:   logger,
	}
}

func (s *ExplicitMapping) Name() string { return ExplicitMappingName }

func (s *ExplicitMapping) Priority() int { return 3 }

// RegisterMapping installs fn for the srcType/tgtType pair, replacing any
// previous programmatic registration for that pair.
func (s *ExplicitMapping) RegisterMapping(srcType, tgtType string, fn MappingFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mappings[srcType] == nil {
		s.mappings[srcType] = make(map[string]MappingFunc)
	}
	s.mappings[srcType][tgtType] = fn

	s.logger.Debugw("Mapping registered",
		"source_type", srcType,
		"target_type", tgtType)
}

// SetRules replaces the declarative rule layer. Pairs absent from the new
// set stop resolving; programmatic registrations are untouched.
func (s *ExplicitMapping) SetRules(compiled map[string]map[string]MappingFunc) {
	if compiled == nil {
		compiled = make(map[string]map[string]MappingFunc)
	}
	s.mu.Lock()
	s.rules = compiled
	s.mu.Unlock()
}

// LoadRulesFile loads a declarative mapping file and installs its compiled
// rules, replacing any previously installed set. The rules watcher calls
// this on every file change.
func (s *ExplicitMapping) LoadRulesFile(path string) error {
	rs, err := LoadRules(path)
	if err != nil {
		return err
	}
	s.SetRules(rs.Compile())
	s.logger.Infow("Mapping rules loaded",
		"path", path,
		"rules", len(rs.Mappings))
	return nil
}

// Pairs returns every registered pair, programmatic and declarative,
// sorted for stable display.
func (s *ExplicitMapping) Pairs() []MappingPair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[MappingPair]bool)
	var pairs []MappingPair
	for _, layer := range []map[string]map[string]MappingFunc{s.mappings, s.rules} {
		for srcType, targets := range layer {
			for tgtType := range targets {
				p := MappingPair{Source: srcType, Target: tgtType}
				if !seen[p] {
					seen[p] = true
					pairs = append(pairs, p)
				}
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Source != pairs[j].Source {
			return pairs[i].Source < pairs[j].Source
		}
		return pairs[i].Target < pairs[j].Target
	})
	return pairs
}

// lookup returns the function for the pair, programmatic layer first.
func (s *ExplicitMapping) lookup(srcType, tgtType string) MappingFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fn := s.mappings[srcType][tgtType]; fn != nil {
		return fn
	}
	return s.rules[srcType][tgtType]
}

// CanResolve reports whether the exact type pair has a mapping.
func (s *ExplicitMapping) CanResolve(ctx context.Context, src, tgt *semantic.Descriptor) bool {
	return s.lookup(semantic.TypeLabel(src), semantic.TypeLabel(tgt)) != nil
}

// Resolve applies the registered mapping function. A missing mapping or a
// function error reports through the result, never as a returned error.
func (s *ExplicitMapping) Resolve(ctx context.Context, srcData, tgtData any, src, tgt *semantic.Descriptor) *resolution.Result {
	srcType := semantic.TypeLabel(src)
	tgtType := semantic.TypeLabel(tgt)

	fn := s.lookup(srcType, tgtType)
	if fn == nil {
		return resolution.Failure(ExplicitMappingName, "no_mapping",
			fmt.Sprintf("no mapping registered for %s to %s", srcType, tgtType))
	}

	sourceMap, ok := srcData.(map[string]any)
	if !ok {
		return resolution.Failure(ExplicitMappingName, "invalid_source",
			fmt.Sprintf("explicit mappings require object data, got %T", srcData))
	}

	resolved, err := fn(sourceMap)
	if err != nil {
		s.logger.Warnw("Mapping function failed",
			"source_type", srcType,
			"target_type", tgtType,
			"error", err)
		return resolution.Failure(ExplicitMappingName, "mapping_error", err.Error())
	}

	return &resolution.Result{
		Success:      true,
		ResolvedData: resolved,
		StrategyUsed: ExplicitMappingName,
		Confidence:   1.0,
		ResolvedConflicts: []resolution.ConflictNote{{
			Type:        "structural",
			Description: fmt.Sprintf("mapped %s to %s", srcType, tgtType),
			Resolution:  "explicit mapping function",
		}},
	}
}

var _ Strategy = (*ExplicitMapping)(nil)
