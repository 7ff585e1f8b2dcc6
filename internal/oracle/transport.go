package oracle

import (
	"context"
)

// Role values match the completion providers' chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a completion conversation.
type Message struct {
	Role    string
	Content string
}

// Transport is a raw text-completion call against one provider. It is the
// only seam that touches the network; the Client layers parsing and
// fail-soft behavior on top of it.
type Transport interface {
	Complete(ctx context.Context, messages []Message, maxTokens int) (string, error)
	Name() string
	ModelName() string
}
