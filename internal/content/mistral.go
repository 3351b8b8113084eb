package content

import "context"

// DefaultMistralBaseURL is Mistral's OpenAI-compatible endpoint.
const DefaultMistralBaseURL = "https://api.mistral.ai/v1"

// MistralProvider cleans transcripts through Mistral's OpenAI-compatible API.
type MistralProvider struct {
	baseURL string
}

// NewMistralProvider creates the Mistral provider. An empty baseURL uses the
// public API.
func NewMistralProvider(baseURL string) *MistralProvider {
	if baseURL == "" {
		baseURL = DefaultMistralBaseURL
	}
	return &MistralProvider{baseURL: baseURL}
}

func (p *MistralProvider) Name() string { return "mistral" }

func (p *MistralProvider) Budget() TokenBudget { return CloudTokenBudget }

func (p *MistralProvider) Clean(ctx context.Context, req CleanRequest) (CleanResult, error) {
	text, err := compatChat(ctx, p.baseURL, req.APIKey, req.Model, req)
	if err != nil {
		return CleanResult{}, mapRequestErr(p.Name(), err)
	}

	return ParseCloudResponse(text)
}
