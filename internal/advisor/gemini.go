package advisor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/agrisense/agrisense/internal/models"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiRewriter rewrites template explanations into natural prose
// using Google's Gemini API.
type GeminiRewriter struct {
	client *genai.Client
	model  string
}

// NewGeminiRewriter creates a Gemini-backed rewriter.
func NewGeminiRewriter(ctx context.Context, apiKey, model string) (*GeminiRewriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiRewriter{client: client, model: model}, nil
}

// Rewrite asks the model to restate the explanation for a farmer. Any
// failure returns an error and the caller keeps the template text.
func (g *GeminiRewriter) Rewrite(ctx context.Context, alert *models.Alert, explanation string) (string, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following farm monitoring recommendation as two or three plain sentences "+
			"addressed to a farmer. Keep every fact (sensor type %s, severity %s, values, confidence) "+
			"and do not invent new advice.\n\n%s",
		alert.SensorType, alert.Severity, explanation)

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}
	return text, nil
}
