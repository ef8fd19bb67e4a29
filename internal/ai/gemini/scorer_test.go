package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestPairScorerScores(t *testing.T) {
	stub := &stubGenerator{response: `{"scores": [0.9, "0.4", 1.7]}`}
	scorer := NewPairScorer(stub, zap.NewNop(), 0)

	scores, err := scorer.ScorePairs(context.Background(), "go developer", []string{"go job", "java job", "go lead"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{0.9, 0.4, 1}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("score %d: expected %v, got %v", i, want[i], scores[i])
		}
	}

	if !strings.Contains(stub.lastPrompt, "go developer") || !strings.Contains(stub.lastPrompt, "java job") {
		t.Fatalf("prompt misses profile or postings: %s", stub.lastPrompt)
	}
	if strings.Contains(stub.lastPrompt, "{{PROFILE}}") || strings.Contains(stub.lastPrompt, "{{JOBS_JSON}}") {
		t.Fatalf("prompt placeholders left in place")
	}
}

func TestPairScorerModelErrorIsUnavailable(t *testing.T) {
	stub := &stubGenerator{err: errors.New("503")}
	scorer := NewPairScorer(stub, zap.NewNop(), 0)

	_, err := scorer.ScorePairs(context.Background(), "q", []string{"d"})
	if !errors.Is(err, ai.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPairScorerCountMismatch(t *testing.T) {
	stub := &stubGenerator{response: `[0.5]`}
	scorer := NewPairScorer(stub, zap.NewNop(), 0)

	if _, err := scorer.ScorePairs(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("expected error for missing scores")
	}
}

func TestPairScorerNoDocs(t *testing.T) {
	stub := &stubGenerator{}
	scorer := NewPairScorer(stub, zap.NewNop(), 0)

	scores, err := scorer.ScorePairs(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected nil, nil; got %v, %v", scores, err)
	}
	if stub.lastPrompt != "" {
		t.Fatal("generator should not be called without postings")
	}
}

func TestParseScoresHandlesCodeBlock(t *testing.T) {
	raw := "```json\n{\"scores\": [{\"score\": 0.25}, \"x\"]}\n```"
	scores, err := parseScores(raw, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores[0] != 0.25 || scores[1] != 0 {
		t.Fatalf("unexpected scores %v", scores)
	}
}
