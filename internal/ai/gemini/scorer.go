package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// PairScorer asks Gemini to judge the profile against every posting in one
// prompt, so each posting is read jointly with the profile.
type PairScorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewPairScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *PairScorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &PairScorer{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (s *PairScorer) Name() string { return "gemini:" + s.generator.Model() }

func (s *PairScorer) ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	type posting struct {
		Index int    `json:"index"`
		Text  string `json:"text"`
	}
	postings := make([]posting, len(docs))
	for i, d := range docs {
		postings[i] = posting{Index: i, Text: d}
	}
	jobsJSON, err := json.MarshalIndent(postings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal postings payload: %w", err)
	}

	prompt := buildPrompt(query, string(jobsJSON))

	s.logger.Debug("gemini generate content request",
		zap.Int("pairs", len(docs)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ai.ErrUnavailable, err)
	}

	s.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	scores, err := parseScores(raw, len(docs))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrUnavailable, err)
	}
	return scores, nil
}

func buildPrompt(profile, jobsJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE}}\n\nPostings:\n{{JOBS_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{PROFILE}}", profile)
	prompt = strings.ReplaceAll(prompt, "{{JOBS_JSON}}", jobsJSON)
	return prompt
}

// parseScores accepts {"scores": [...]} or a bare array. Scores are clamped
// to [0,1]; unreadable entries score 0.
func parseScores(raw string, want int) ([]float64, error) {
	cleaned := extractJSON(raw)

	var values []any
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &values); err != nil {
			return nil, fmt.Errorf("parse gemini response: %w", err)
		}
	} else {
		var data map[string]any
		if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
			return nil, fmt.Errorf("parse gemini response: %w", err)
		}
		list, ok := data["scores"].([]any)
		if !ok {
			return nil, fmt.Errorf("parse gemini response: missing scores array")
		}
		values = list
	}

	if len(values) != want {
		return nil, fmt.Errorf("parse gemini response: %d scores for %d postings", len(values), want)
	}

	scores := make([]float64, want)
	for i, v := range values {
		f := coerceFloat(v)
		if math.IsNaN(f) {
			f = 0
		}
		scores[i] = min(max(f, 0), 1)
	}
	return scores, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case map[string]any:
		return coerceFloat(val["score"])
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
