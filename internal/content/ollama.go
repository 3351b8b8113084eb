package content

import (
	"context"
	"errors"
	"syscall"
)

// DefaultOllamaBaseURL is where a stock ollama install listens.
const DefaultOllamaBaseURL = "http://127.0.0.1:11434/v1"

// OllamaProvider cleans transcripts with a local ollama server. It needs no
// API key, but small local models force the tight token budget.
type OllamaProvider struct {
	baseURL string
}

// NewOllamaProvider creates the ollama provider. An empty baseURL uses the
// stock install address.
func NewOllamaProvider(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	return &OllamaProvider{baseURL: baseURL}
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Budget() TokenBudget { return LocalTokenBudget }

// Clean sends the transcript to the local server. A refused connection maps
// to UnavailableError so the caller can tell the user to start ollama instead
// of showing a generic request failure.
func (p *OllamaProvider) Clean(ctx context.Context, req CleanRequest) (CleanResult, error) {
	text, err := compatChat(ctx, p.baseURL, req.APIKey, req.Model, req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return CleanResult{}, &UnavailableError{Provider: p.Name(), Reason: "is ollama running?", Err: err}
		}
		return CleanResult{}, mapRequestErr(p.Name(), err)
	}

	return ParseCloudResponse(text)
}
