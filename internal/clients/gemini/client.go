package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

const defaultModel = "gemini-2.5-flash"

// Client wraps the GenAI SDK for simple prompt-in text-out calls.
type Client struct {
	client    *genai.Client
	modelName string
	log       *logger.Logger
}

func New(ctx context.Context, apiKey, model string, log *logger.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Client{
		client:    client,
		modelName: model,
		log:       log.With("client", "Gemini", "model", model),
	}, nil
}

// GenerateText sends the prompt and concatenates the textual parts
// of the first candidates.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("gemini client is not initialized")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	out := strings.TrimSpace(builder.String())
	if out == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return out, nil
}

const modifyQueryPrompt = `Rewrite this candidate search request so it includes
the answers the user gave to follow-up questions. Keep it one sentence,
keep the original wording where possible, and state every answer as an
explicit requirement.

Request: %q
Answers:
%s
Rewritten request only, no prose.`

// ModifyQuery folds clarification answers back into the search
// request so the rewritten sentence can be re-classified.
func (c *Client) ModifyQuery(ctx context.Context, request string, answers map[string]string) (string, error) {
	var pairs strings.Builder
	for field, answer := range answers {
		if strings.TrimSpace(answer) == "" {
			continue
		}
		fmt.Fprintf(&pairs, "- %s: %s\n", field, answer)
	}
	if pairs.Len() == 0 {
		return request, nil
	}
	return c.GenerateText(ctx, fmt.Sprintf(modifyQueryPrompt, request, pairs.String()))
}

// ExtractJSON strips markdown code fences the model tends to wrap
// JSON payloads in.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
