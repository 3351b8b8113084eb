package content

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// compatChat calls an OpenAI-compatible chat completions endpoint and returns
// the raw text of the first choice. Ollama and Mistral both speak this
// dialect, so their providers share it.
func compatChat(ctx context.Context, baseURL, apiKey, model string, req CleanRequest) (string, error) {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: cleanupSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: cleanupUserMessage(req)},
		},
		// Cleanup is editing, not writing; keep the model close to the input.
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &ParseError{Detail: "chat response has no choices"}
	}

	return resp.Choices[0].Message.Content, nil
}

// mapRequestErr folds a provider API failure into the typed error callers
// branch on. Cancellation and parse errors pass through untouched.
func mapRequestErr(provider string, err error) error {
	var parseErr *ParseError
	switch {
	case errors.As(err, &parseErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &RequestError{Provider: provider, Err: err}
	}
}
