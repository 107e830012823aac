package semantic

import (
	"testing"

	"github.com/teranos/concord/internal/util"
)

const tolerance = 1e-9

func TestKeySimilarity_Identity(t *testing.T) {
	keys := []string{
		MakeKey(userProfileDescriptor(), authRecordDescriptor()),
		MakeKey(nil, nil),
		fallbackKey(),
	}
	for _, key := range keys {
		if got := KeySimilarity(key, key); got != 1.0 {
			t.Errorf("KeySimilarity(k, k) = %f for %q, want 1.0", got, key)
		}
	}
}

func TestKeySimilarity_NearbySchemas(t *testing.T) {
	base := MakeKey(userProfileDescriptor(), authRecordDescriptor())

	// Same entities, one extra source attribute.
	widened := userProfileDescriptor()
	widened.Attributes["phone"] = AttributeSpec{Type: "string"}
	near := MakeKey(widened, authRecordDescriptor())

	sim := KeySimilarity(base, near)
	if sim <= 0.9 || sim >= 1.0 {
		t.Errorf("expected near-identical schemas to score in (0.9, 1.0), got %f", sim)
	}
}

func TestKeySimilarity_DifferentDomains(t *testing.T) {
	profile := MakeKey(userProfileDescriptor(), authRecordDescriptor())
	sensor := MakeKey(
		&Descriptor{
			EntityType: "sensorReading",
			Attributes: map[string]AttributeSpec{"ts": {Type: "timestamp"}, "value": {Type: "number"}},
		},
		&Descriptor{
			EntityType: "alertEvent",
			Attributes: map[string]AttributeSpec{"level": {Type: "string"}},
		},
	)

	cross := KeySimilarity(profile, sensor)
	near := KeySimilarity(profile, profile)
	if cross >= near {
		t.Errorf("expected unrelated pair to score below identity: %f", cross)
	}
	// No type-pair credit and disjoint schemas keep the score low.
	if cross >= 0.5 {
		t.Errorf("expected unrelated pair below 0.5, got %f", cross)
	}
}

func TestKeySimilarity_TypePairCredit(t *testing.T) {
	// Degraded fingerprints isolate the type-pair term.
	matched := KeySimilarity("u:raw1#v:raw2", "u:raw3#v:raw4")
	if util.AbsFloat64(matched-0.3) > tolerance {
		t.Errorf("expected bare type-pair match to score 0.3, got %f", matched)
	}

	mismatched := KeySimilarity("u:raw1#v:raw2", "u:raw3#w:raw4")
	if mismatched != 0 {
		t.Errorf("expected mismatched target type to score 0, got %f", mismatched)
	}
}

func TestKeySimilarity_DegradedHalvesCompareAsStrings(t *testing.T) {
	// Source halves are not JSON and equal; target halves decode and match.
	// Types differ on the target side, so only the two halves score.
	sim := KeySimilarity(`u:notjson#v:{"x":1}`, `u:notjson#w:{"x":1}`)
	if util.AbsFloat64(sim-0.7) > tolerance {
		t.Errorf("expected 0.35 + 0.35 = 0.7, got %f", sim)
	}
}

func TestKeySimilarity_Unparseable(t *testing.T) {
	valid := MakeKey(userProfileDescriptor(), authRecordDescriptor())

	tests := []struct {
		name string
		a, b string
	}{
		{"no separator", "garbage", valid},
		{"missing colons", "left#right", valid},
		{"two fallback keys", "fallback:1:2", "fallback:3:4"},
		{"empty", "", valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeySimilarity(tt.a, tt.b); got != 0 {
				t.Errorf("KeySimilarity(%q, %q) = %f, want 0", tt.a, tt.b, got)
			}
		})
	}
}

func TestStructuralSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     map[string]any
		expected float64
	}{
		{
			name:     "both empty",
			a:        map[string]any{},
			b:        nil,
			expected: 1.0,
		},
		{
			name:     "identical",
			a:        map[string]any{"a": 1.0, "b": "x"},
			b:        map[string]any{"a": 1.0, "b": "x"},
			expected: 1.0,
		},
		{
			name:     "disjoint keys",
			a:        map[string]any{"a": 1.0},
			b:        map[string]any{"b": 1.0},
			expected: 0,
		},
		{
			name:     "one shared of three",
			a:        map[string]any{"x": 1.0, "y": 2.0},
			b:        map[string]any{"x": 1.0, "z": 3.0},
			expected: (1.0/3.0 + 1.0) / 2,
		},
		{
			name:     "nested objects recurse",
			a:        map[string]any{"s": map[string]any{"n": "string"}},
			b:        map[string]any{"s": map[string]any{"n": "number"}},
			expected: 0.75,
		},
		{
			name:     "scalar kind mismatch",
			a:        map[string]any{"x": 1.0},
			b:        map[string]any{"x": "1"},
			expected: 0.5,
		},
		{
			name:     "object versus scalar",
			a:        map[string]any{"x": map[string]any{"k": 1.0}},
			b:        map[string]any{"x": 1.0},
			expected: 0.5,
		},
		{
			name:     "arrays compare exactly",
			a:        map[string]any{"c": []any{"a", "b"}},
			b:        map[string]any{"c": []any{"a", "b"}},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := structuralSimilarity(tt.a, tt.b)
			if util.AbsFloat64(got-tt.expected) > tolerance {
				t.Errorf("structuralSimilarity = %f, want %f", got, tt.expected)
			}
		})
	}
}
