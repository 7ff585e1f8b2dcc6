package oracle

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GeminiTransport implements Transport using the Google Gemini API.
type GeminiTransport struct {
	client *genai.Client
	model  string
}

// NewGeminiTransport creates a Gemini-backed transport.
func NewGeminiTransport(ctx context.Context, apiKey, model string) (*GeminiTransport, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key not provided")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Infof("Gemini oracle transport initialized with model %s", model)
	return &GeminiTransport{client: client, model: model}, nil
}

func (t *GeminiTransport) Name() string      { return "gemini" }
func (t *GeminiTransport) ModelName() string { return t.model }

func (t *GeminiTransport) Close() error { return t.client.Close() }

func (t *GeminiTransport) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	model := t.client.GenerativeModel(t.model)
	if maxTokens > 0 {
		mt := int32(maxTokens)
		model.MaxOutputTokens = &mt
	}

	// Gemini has no separate system role in this API version; fold the
	// conversation into a single prompt.
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(b.String()))
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return out.String(), nil
}

var _ Transport = (*GeminiTransport)(nil)
