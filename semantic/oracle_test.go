package semantic

import (
	"context"
	"strings"
	"testing"

	"github.com/teranos/concord/ai/openrouter"
	"github.com/teranos/concord/errors"
	"github.com/teranos/concord/internal/util"
)

// stubClient returns a canned oracle response and remembers the request.
type stubClient struct {
	content string
	err     error
	lastReq openrouter.ChatRequest
}

func (s *stubClient) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &openrouter.ChatResponse{Content: s.content}, nil
}

func TestSimilarityOracle_Score(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		err      error
		expected float64
	}{
		{"json score", `{"score": 0.82}`, nil, 0.82},
		{"bare number", "0.55", nil, 0.55},
		{"score in prose", "The similarity is about 0.8 overall.", nil, 0.8},
		{"clamped above one", `{"score": 1.7}`, nil, 1.0},
		{"clamped below zero", `{"score": -0.4}`, nil, 0},
		{"oracle failure degrades", "", errors.New("connection refused"), similarityFallback},
		{"unparseable degrades", "no digits here at all", nil, similarityFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := NewSimilarityOracle(&stubClient{content: tt.content, err: tt.err}, nil)

			got := oracle.Score(context.Background(), userProfileDescriptor(), authRecordDescriptor())
			if util.AbsFloat64(got-tt.expected) > tolerance {
				t.Errorf("Score = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestSimilarityOracle_NilClient(t *testing.T) {
	oracle := NewSimilarityOracle(nil, nil)

	got := oracle.Score(context.Background(), userProfileDescriptor(), authRecordDescriptor())
	if got != similarityFallback {
		t.Errorf("expected fallback score with nil client, got %f", got)
	}
}

func TestSimilarityOracle_PromptCarriesBothDescriptors(t *testing.T) {
	client := &stubClient{content: `{"score": 0.5}`}
	oracle := NewSimilarityOracle(client, nil)

	oracle.Score(context.Background(), userProfileDescriptor(), authRecordDescriptor())

	if !strings.Contains(client.lastReq.UserPrompt, "userProfile") {
		t.Error("expected source descriptor in the prompt")
	}
	if !strings.Contains(client.lastReq.UserPrompt, "authRecord") {
		t.Error("expected target descriptor in the prompt")
	}
	if !strings.Contains(client.lastReq.SystemPrompt, "score") {
		t.Error("expected the system prompt to pin the response format")
	}
}
