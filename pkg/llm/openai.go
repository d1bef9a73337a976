package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIHandler implements Client against the OpenAI chat completions API
// (or any compatible endpoint via baseURL).
type OpenAIHandler struct {
	client *openai.Client
	logger *logrus.Logger
}

// NewOpenAIHandler creates an OpenAI-backed client. baseURL may be empty.
func NewOpenAIHandler(apiKey, baseURL string, logger *logrus.Logger) *OpenAIHandler {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIHandler{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

func (h *OpenAIHandler) Complete(ctx context.Context, model string, msgs []Message, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := h.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// WhisperHandler implements Transcriber against the OpenAI audio API.
type WhisperHandler struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

func NewWhisperHandler(apiKey, baseURL, model string, logger *logrus.Logger) *WhisperHandler {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &WhisperHandler{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

func (h *WhisperHandler) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := h.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    h.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}
