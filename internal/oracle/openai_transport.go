package oracle

import (
	"context"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// OpenAITransport implements Transport using the OpenAI chat completion API.
type OpenAITransport struct {
	client interface {
		CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	}
	model string
}

// NewOpenAITransport creates an OpenAI-backed transport.
func NewOpenAITransport(apiKey, model string) (*OpenAITransport, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	log.Infof("OpenAI oracle transport initialized with model %s", model)
	return &OpenAITransport{client: openai.NewClient(apiKey), model: model}, nil
}

func (t *OpenAITransport) Name() string      { return "openai" }
func (t *OpenAITransport) ModelName() string { return t.model }

func (t *OpenAITransport) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     t.model,
		MaxTokens: maxTokens,
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := t.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Transport = (*OpenAITransport)(nil)
