package llm

import "context"

// Message is one turn of a chat-style prompt.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Options tune a single completion call.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Client is a generic interface for chat-completion providers.
type Client interface {
	// Complete sends the prompt and returns the assistant reply text.
	Complete(ctx context.Context, model string, msgs []Message, opts Options) (string, error)
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
