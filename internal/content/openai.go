package content

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider cleans transcripts with OpenAI chat completions.
type OpenAIProvider struct {
	opts []option.RequestOption
}

// NewOpenAIProvider creates the OpenAI provider. Extra options are appended
// to every request; tests use them to point at a local server.
func NewOpenAIProvider(opts ...option.RequestOption) *OpenAIProvider {
	return &OpenAIProvider{opts: opts}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Budget() TokenBudget { return CloudTokenBudget }

func (p *OpenAIProvider) Clean(ctx context.Context, req CleanRequest) (CleanResult, error) {
	opts := append([]option.RequestOption{option.WithAPIKey(req.APIKey)}, p.opts...)
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(cleanupSystemPrompt),
			openai.UserMessage(cleanupUserMessage(req)),
		},
	})
	if err != nil {
		return CleanResult{}, mapRequestErr(p.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return CleanResult{}, &ParseError{Detail: "chat response has no choices"}
	}

	return ParseCloudResponse(resp.Choices[0].Message.Content)
}
