package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/concord/errors"
)

func TestExtractJSONDirect(t *testing.T) {
	obj, err := ExtractJSON(`{"resolvedData":{"user_id":1},"confidence":0.9}`)
	require.NoError(t, err)

	assert.Equal(t, 0.9, obj["confidence"])
	nested, ok := obj["resolvedData"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), nested["user_id"])
}

func TestExtractJSONFenced(t *testing.T) {
	text := "Here is the merged structure:\n```json\n{\"confidence\": 0.8, \"summary\": \"renamed uid\"}\n```\nLet me know if you need more."
	obj, err := ExtractJSON(text)
	require.NoError(t, err)

	assert.Equal(t, 0.8, obj["confidence"])
	assert.Equal(t, "renamed uid", obj["summary"])
}

func TestExtractJSONFencedNoLanguageTag(t *testing.T) {
	obj, err := ExtractJSON("```\n{\"ok\": true}\n```")
	require.NoError(t, err)
	assert.Equal(t, true, obj["ok"])
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	text := `The merged object is {"user_id": 1, "name": "ada"} as requested.`
	obj, err := ExtractJSON(text)
	require.NoError(t, err)

	assert.Equal(t, "ada", obj["name"])
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	text := `Note the payload: {"note": "a { tricky } string", "x": 1} end.`
	obj, err := ExtractJSON(text)
	require.NoError(t, err)

	assert.Equal(t, "a { tricky } string", obj["note"])
	assert.Equal(t, float64(1), obj["x"])
}

func TestExtractJSONSkipsUndecodableCandidates(t *testing.T) {
	text := `{not json at all} but later {"ok": true} appears`
	obj, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, true, obj["ok"])
}

func TestExtractJSONRejectsNonObjects(t *testing.T) {
	for _, text := range []string{"[1,2,3]", "null", `"just a string"`, "42", "", "no braces here"} {
		_, err := ExtractJSON(text)
		require.Error(t, err, "input %q", text)
		assert.True(t, errors.Is(err, errors.ErrUnparseableResponse), "input %q", text)
	}
}

func TestScanObjectsMultiple(t *testing.T) {
	candidates := scanObjects(`first {"a":1} second {"b":{"c":2}} done`)
	require.Len(t, candidates, 2)
	assert.Equal(t, `{"a":1}`, candidates[0])
	assert.Equal(t, `{"b":{"c":2}}`, candidates[1])
}

func TestScanObjectsUnbalanced(t *testing.T) {
	assert.Empty(t, scanObjects(`opening { never closes`))
	assert.Empty(t, scanObjects(`} closes nothing`))
}

func TestExtractScoreBareNumber(t *testing.T) {
	score, err := ExtractScore("0.85")
	require.NoError(t, err)
	assert.Equal(t, 0.85, score)

	score, err = ExtractScore(" 0.7\n")
	require.NoError(t, err)
	assert.Equal(t, 0.7, score)

	score, err = ExtractScore("-0.5")
	require.NoError(t, err)
	assert.Equal(t, -0.5, score)
}

func TestExtractScoreFromJSON(t *testing.T) {
	score, err := ExtractScore(`{"similarity": 0.42}`)
	require.NoError(t, err)
	assert.Equal(t, 0.42, score)

	// String-typed values happen with weaker models.
	score, err = ExtractScore(`{"score": "0.9"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.9, score)
}

func TestExtractScoreFromProse(t *testing.T) {
	score, err := ExtractScore("The similarity between these shapes is 0.73, mostly from field overlap.")
	require.NoError(t, err)
	assert.Equal(t, 0.73, score)
}

func TestExtractScoreNoNumber(t *testing.T) {
	_, err := ExtractScore("these are quite similar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnparseableResponse))

	_, err = ExtractScore("")
	require.Error(t, err)
}

func TestExtractIntoStruct(t *testing.T) {
	var payload struct {
		Patterns        []string `json:"patterns"`
		Recommendations []string `json:"recommendations"`
	}
	text := "Analysis follows:\n```json\n{\"patterns\": [\"repeated pairs\"], \"recommendations\": [\"lower the similarity threshold\"]}\n```"
	require.NoError(t, ExtractInto(text, &payload))
	assert.Equal(t, []string{"repeated pairs"}, payload.Patterns)
	assert.Equal(t, []string{"lower the similarity threshold"}, payload.Recommendations)
}

func TestExtractIntoShapeMismatch(t *testing.T) {
	var payload struct {
		Confidence float64 `json:"confidence"`
	}
	err := ExtractInto(`{"confidence": {"nested": true}}`, &payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnparseableResponse))
}

func TestExtractIntoNoObject(t *testing.T) {
	var payload map[string]any
	err := ExtractInto("nothing structured here", &payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnparseableResponse))
}
