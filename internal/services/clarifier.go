package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gitscout/gitscout-backend/internal/clients/gemini"
	types "github.com/gitscout/gitscout-backend/internal/domain"
	"github.com/gitscout/gitscout-backend/internal/domain/chat"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

// QuestionGenerator rewrites a clarification round. The engine
// always has the rule-based questions to fall back on, so a
// generator failure is never fatal to the turn.
type QuestionGenerator interface {
	Generate(ctx context.Context, utterance string, resolved types.CandidateFilters) ([]types.ClarificationQuestion, error)
}

// QueryRewriter folds clarification answers back into the original
// request before re-classification. Optional; generators that cannot
// rewrite are used for questions only.
type QueryRewriter interface {
	Rewrite(ctx context.Context, request string, answers map[string]string) (string, error)
}

type geminiQuestionGenerator struct {
	ai  *gemini.Client
	log *logger.Logger
}

func NewGeminiQuestionGenerator(ai *gemini.Client, log *logger.Logger) QuestionGenerator {
	return &geminiQuestionGenerator{
		ai:  ai,
		log: log.With("service", "QuestionGenerator"),
	}
}

const questionPrompt = `You help a recruiter refine a GitHub candidate search.
The user said: %q
Already resolved filters: %s

Candidates can only be filtered on: location, follower count (min/max),
public email present, any contact method present, last contribution
recency (30d, 3m, 6m, 1y).

Return a JSON array of at most 3 clarification questions needed to turn
the request into those filters. Each element:
{"question": "...", "field_name": "location|followers_min|followers_max|has_email|has_any_contact|last_contribution",
 "options": [{"label": "...", "value": "..."}], "allow_custom": true|false}
Return [] if no clarification is needed. JSON only, no prose.`

func (g *geminiQuestionGenerator) Generate(ctx context.Context, utterance string, resolved types.CandidateFilters) ([]types.ClarificationQuestion, error) {
	prompt := fmt.Sprintf(questionPrompt, utterance, DescribeFilters(resolved))

	raw, err := g.ai.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate clarification questions: %w", err)
	}

	var questions []types.ClarificationQuestion
	if err := json.Unmarshal([]byte(gemini.ExtractJSON(raw)), &questions); err != nil {
		return nil, fmt.Errorf("parse clarification questions: %w", err)
	}

	out := questions[:0]
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.FieldName) == "" {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("generator returned no usable questions")
	}
	if len(out) > chat.MaxClarifications {
		out = out[:chat.MaxClarifications]
	}
	return out, nil
}

func (g *geminiQuestionGenerator) Rewrite(ctx context.Context, request string, answers map[string]string) (string, error) {
	return g.ai.ModifyQuery(ctx, request, answers)
}
