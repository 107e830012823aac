package strategy

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/teranos/concord/errors"
)

// RuleSet is the parsed form of a declarative mapping file. The file is
// TOML with one [[mapping]] block per type pair:
//
//	[[mapping]]
//	source = "userProfile"
//	target = "authRecord"
//	drops  = ["sessionToken"]
//
//	[mapping.renames]
//	name = "username"
//
//	[mapping.constants]
//	provider = "local"
type RuleSet struct {
	Mappings []MappingRule `toml:"mapping"`
}

// MappingRule declares one source-to-target mapping: field renames,
// constant stamps, and dropped fields. Fields not mentioned pass through
// unchanged.
type MappingRule struct {
	Source    string            `toml:"source"`
	Target    string            `toml:"target"`
	Renames   map[string]string `toml:"renames"`
	Constants map[string]any    `toml:"constants"`
	Drops     []string          `toml:"drops"`
}

// LoadRules reads and parses a TOML mapping file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read mapping rules %s", path)
	}

	var rs RuleSet
	if err := toml.Unmarshal(data, &rs); err != nil {
		return nil, errors.Wrapf(err, "failed to parse mapping rules %s", path)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks that every rule names both sides of its pair.
func (rs *RuleSet) Validate() error {
	for i, r := range rs.Mappings {
		if r.Source == "" || r.Target == "" {
			return errors.Newf("mapping %d: source and target are required", i)
		}
	}
	return nil
}

// Compile turns the rule set into mapping functions keyed
// srcType -> tgtType. Later rules for the same pair win.
func (rs *RuleSet) Compile() map[string]map[string]MappingFunc {
	compiled := make(map[string]map[string]MappingFunc, len(rs.Mappings))
	for _, rule := range rs.Mappings {
		if compiled[rule.Source] == nil {
			compiled[rule.Source] = make(map[string]MappingFunc)
		}
		compiled[rule.Source][rule.Target] = rule.mappingFunc()
	}
	return compiled
}

// mappingFunc builds the pure function one rule describes. Renames run
// first, then drops, then constants, so a constant lands even when the
// rule drops a field of the same name.
func (r MappingRule) mappingFunc() MappingFunc {
	return func(source map[string]any) (map[string]any, error) {
		out := make(map[string]any, len(source)+len(r.Constants))
		for k, v := range source {
			out[k] = v
		}
		for from, to := range r.Renames {
			if v, ok := out[from]; ok {
				delete(out, from)
				out[to] = v
			}
		}
		for _, k := range r.Drops {
			delete(out, k)
		}
		for k, v := range r.Constants {
			out[k] = v
		}
		return out, nil
	}
}
