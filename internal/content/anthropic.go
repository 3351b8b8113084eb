package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// cleanToolName is the tool the model must call to hand back structured
// output. Forced tool use is more reliable than asking Claude for bare JSON.
const cleanToolName = "save_cleaned_note"

// AnthropicProvider cleans transcripts with Claude via forced tool use.
type AnthropicProvider struct {
	opts []option.RequestOption
}

// NewAnthropicProvider creates the Anthropic provider. Extra options are
// appended to every request; tests use them to point at a local server.
func NewAnthropicProvider(opts ...option.RequestOption) *AnthropicProvider {
	return &AnthropicProvider{opts: opts}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Budget() TokenBudget { return CloudTokenBudget }

func (p *AnthropicProvider) Clean(ctx context.Context, req CleanRequest) (CleanResult, error) {
	opts := append([]option.RequestOption{option.WithAPIKey(req.APIKey)}, p.opts...)
	client := anthropic.NewClient(opts...)

	toolDef := cleanTool()
	tool := anthropic.ToolUnionParamOfTool(toolDef.InputSchema, toolDef.Name)
	tool.OfTool.Description = toolDef.Description

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: cleanupSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(cleanupUserMessage(req))),
		},
		Tools:      []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceParamOfTool(cleanToolName),
	})
	if err != nil {
		return CleanResult{}, mapRequestErr(p.Name(), err)
	}
	if len(resp.Content) == 0 {
		return CleanResult{}, &ParseError{Detail: "empty response from Anthropic API"}
	}

	return parseCleanToolUse(resp.Content)
}

// cleanTool returns the tool definition for the structured handoff. Both
// fields are required, so the model cannot return a title without a body.
func cleanTool() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        cleanToolName,
		Description: anthropic.String("Save the cleaned transcription and its title"),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type: "object",
			Properties: map[string]interface{}{
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Five to seven word title, safe for use in a file name",
				},
				"cleanedText": map[string]interface{}{
					"type":        "string",
					"description": "The cleaned transcription text",
				},
			},
			Required: []string{"title", "cleanedText"},
		},
	}
}

// parseCleanToolUse extracts the tool call from response content blocks.
func parseCleanToolUse(content []anthropic.ContentBlockUnion) (CleanResult, error) {
	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || toolUse.Name != cleanToolName {
			continue
		}

		raw, err := json.Marshal(toolUse.Input)
		if err != nil {
			return CleanResult{}, &ParseError{Detail: fmt.Sprintf("re-encode tool input: %v", err)}
		}
		var result CleanResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return CleanResult{}, &ParseError{Detail: fmt.Sprintf("decode tool input: %v", err), Snippet: snippet(string(raw))}
		}
		return result, nil
	}

	return CleanResult{}, &ParseError{Detail: "no tool use found in Anthropic API response"}
}
