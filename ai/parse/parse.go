// Package parse recovers structured payloads from free-form oracle text.
// Oracle responses are untrusted: they may be clean JSON, JSON inside a
// fenced code block, or an object buried in prose. Every extractor here is
// staged so well-behaved responses stay on the cheap path, and nothing else
// in the codebase re-implements recovery heuristics.
package parse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/concord/errors"
)

// ExtractJSON pulls a single JSON object out of oracle response text.
// Stages: direct decode, fenced code block, then the first balanced
// top-level object found by a byte scanner. Wraps ErrUnparseableResponse
// when all stages fail.
func ExtractJSON(text string) (map[string]any, error) {
	candidate, err := objectText(text)
	if err != nil {
		return nil, err
	}
	return decodeObject(candidate)
}

// ExtractInto recovers a JSON object from text with the same staging as
// ExtractJSON and decodes it into v, so callers with a known payload shape
// skip the map plumbing.
func ExtractInto(text string, v any) error {
	candidate, err := objectText(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return errors.Wrapf(errors.ErrUnparseableResponse, "object does not fit %T: %v", v, err)
	}
	return nil
}

// objectText returns the first span of text that decodes as a JSON object.
func objectText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", errors.Wrap(errors.ErrUnparseableResponse, "empty response")
	}

	// Stage 1: the whole response is the object.
	if _, err := decodeObject(trimmed); err == nil {
		return trimmed, nil
	}

	// Stage 2: fenced code block.
	if inner, ok := unfence(trimmed); ok {
		if _, err := decodeObject(inner); err == nil {
			return inner, nil
		}
	}

	// Stage 3: balanced objects embedded in prose, first decodable wins.
	for _, candidate := range scanObjects(trimmed) {
		if _, err := decodeObject(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.Wrapf(errors.ErrUnparseableResponse, "no JSON object in %d bytes of response", len(text))
}

// decodeObject decodes s as a JSON object. Arrays, scalars, and null are
// rejected so callers always get a usable map.
func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("JSON null is not an object")
	}
	return obj, nil
}

// unfence extracts the contents of the first fenced code block, dropping
// the language tag line when present.
func unfence(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start == -1 {
		return "", false
	}

	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}

	return strings.TrimSpace(rest[:end]), true
}

// scanObjects returns every balanced top-level {...} span in s, in document
// order. A byte-level state machine tracks brace depth and skips string
// contents; iterating bytes is safe for ASCII delimiters because UTF-8
// never embeds them in multi-byte sequences.
func scanObjects(s string) []string {
	var (
		candidates []string
		depth      int
		start      = -1
		inString   bool
		escape     bool
	)

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Conventional keys a scoring response might put its value under.
var scoreKeys = []string{"score", "similarity", "confidence", "value"}

// ExtractScore pulls the first numeric value out of oracle text. Accepts a
// bare number, a JSON payload with a conventional score key, or a number
// buried in prose. Range clamping is the caller's concern.
func ExtractScore(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, errors.Wrap(errors.ErrUnparseableResponse, "empty response")
	}

	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return v, nil
	}

	if obj, err := ExtractJSON(trimmed); err == nil {
		for _, key := range scoreKeys {
			if raw, ok := obj[key]; ok {
				if f, ok := toFloat(raw); ok {
					return f, nil
				}
			}
		}
	}

	match := numberPattern.FindString(trimmed)
	if match == "" {
		return 0, errors.Wrap(errors.ErrUnparseableResponse, "no numeric score in response")
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse score")
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
