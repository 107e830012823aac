package semantic

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Weights of the local key similarity score. Type agreement carries 0.3;
// the source and target fingerprint structures carry 0.35 each.
const (
	typeMatchWeight  = 0.3
	structuralWeight = 0.35
)

// KeySimilarity scores two semantic keys in [0, 1] using only their local
// structure. It never calls the oracle. Exact equality is 1.0; otherwise
// both keys are parsed back into their type and fingerprint halves and
// scored piecewise. Keys that do not parse as keys at all score 0, which
// also covers fallback keys.
func KeySimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	aParts, ok := parseKey(a)
	if !ok {
		return 0
	}
	bParts, ok := parseKey(b)
	if !ok {
		return 0
	}

	var score float64
	if aParts.srcType == bParts.srcType && aParts.tgtType == bParts.tgtType {
		score += typeMatchWeight
	}
	score += structuralWeight * halfSimilarity(aParts.srcFP, bParts.srcFP)
	score += structuralWeight * halfSimilarity(aParts.tgtFP, bParts.tgtFP)
	return score
}

type keyParts struct {
	srcType, srcFP string
	tgtType, tgtFP string
}

// parseKey splits srcType:srcFP#tgtType:tgtFP. The parse is best effort;
// a key missing the separator or either colon is reported unparseable.
func parseKey(key string) (keyParts, bool) {
	halves := strings.SplitN(key, "#", 2)
	if len(halves) != 2 {
		return keyParts{}, false
	}

	src := strings.SplitN(halves[0], ":", 2)
	tgt := strings.SplitN(halves[1], ":", 2)
	if len(src) != 2 || len(tgt) != 2 {
		return keyParts{}, false
	}

	return keyParts{
		srcType: src[0], srcFP: src[1],
		tgtType: tgt[0], tgtFP: tgt[1],
	}, true
}

// halfSimilarity compares one fingerprint half of each key. Fingerprints
// normally decode as JSON objects and are compared structurally; when
// either side fails to decode, the half degrades to exact string
// comparison.
func halfSimilarity(a, b string) float64 {
	aObj, aErr := decodeFingerprint(a)
	bObj, bErr := decodeFingerprint(b)
	if aErr != nil || bErr != nil {
		if a == b {
			return 1.0
		}
		return 0
	}
	return structuralSimilarity(aObj, bObj)
}

func decodeFingerprint(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// structuralSimilarity compares two decoded JSON objects as
// (keyRatio + meanMatch) / 2, where keyRatio is shared keys over the key
// union (1.0 when both are empty) and meanMatch is the mean per-key match
// over shared keys: recurse into nested objects, exact equality for
// scalars and arrays, zero on kind mismatch.
func structuralSimilarity(a, b map[string]any) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	union := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		union[k] = struct{}{}
	}
	for k := range b {
		union[k] = struct{}{}
	}

	shared := 0
	var matchSum float64
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		shared++
		matchSum += valueMatch(av, bv)
	}

	keyRatio := float64(shared) / float64(len(union))
	if shared == 0 {
		return keyRatio / 2
	}
	return (keyRatio + matchSum/float64(shared)) / 2
}

func valueMatch(a, b any) float64 {
	aObj, aIsObj := a.(map[string]any)
	bObj, bIsObj := b.(map[string]any)
	if aIsObj && bIsObj {
		return structuralSimilarity(aObj, bObj)
	}
	if aIsObj != bIsObj {
		return 0
	}
	if reflect.DeepEqual(a, b) {
		return 1.0
	}
	return 0
}
