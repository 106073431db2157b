// Package llm provides chat completion via a hosted model API.
package llm

import "context"

// Message roles understood by providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string
	Content string
}

// Provider generates text from a message sequence. Stream delivers the answer
// incrementally through fn; an error from fn aborts the stream.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Stream(ctx context.Context, messages []Message, fn func(chunk string) error) error
}
