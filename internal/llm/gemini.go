package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// NewGeminiClient constructs a Gemini-backed Client. The API key is read by
// the genai SDK from the environment (GEMINI_API_KEY).
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// Complete issues one generation call. structured requests application/json
// so the model returns a bare JSON document.
func (g *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string, structured bool) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if structured {
		cfg.ResponseMIMEType = "application/json"
	}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: userPrompt}}}},
		cfg,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrProvider)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
