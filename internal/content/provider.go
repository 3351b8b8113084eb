package content

import (
	"context"
	"strings"
)

// charsPerToken is the rough character-to-token ratio used for budgeting.
const charsPerToken = 4

// MinTranscriptWords is the fewest words worth sending to a model. Below
// this the transcript is almost certainly a misfire.
const MinTranscriptWords = 3

// Token budgets by provider class. Local models run inside small context
// windows; cloud models take far more.
const (
	LocalTokenBudget TokenBudget = 700
	CloudTokenBudget TokenBudget = 30000
)

// TokenBudget caps the estimated size of a transcript sent for cleanup.
type TokenBudget int

// InputChars converts the budget to a character ceiling.
func (b TokenBudget) InputChars() int { return int(b) * charsPerToken }

// Fits reports whether transcript is inside the budget.
func (b TokenBudget) Fits(transcript string) bool {
	return EstimateTokens(transcript) <= int(b)
}

// EstimateTokens approximates how many tokens text costs a model.
func EstimateTokens(text string) int { return len(text) / charsPerToken }

// CleanRequest carries one transcript cleanup call to a provider.
type CleanRequest struct {
	Transcript string
	Vocabulary []string
	Model      string
	APIKey     string
}

// CleanResult is a cleaned transcript with its generated title.
type CleanResult struct {
	Title       string `json:"title"`
	CleanedText string `json:"cleanedText"`
}

// Provider cleans transcripts with a specific model API.
type Provider interface {
	// Name identifies the provider in settings and error messages.
	Name() string
	// Budget is the largest transcript the provider accepts.
	Budget() TokenBudget
	// Clean rewrites the transcript and titles it.
	Clean(ctx context.Context, req CleanRequest) (CleanResult, error)
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider, replacing any previous one with the same name.
func (r *Registry) Register(p Provider) {
	r.providers[strings.ToLower(p.Name())] = p
}

// Provider looks up a provider by name.
func (r *Registry) Provider(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// DefaultRegistry wires the built-in providers. Base URLs come from process
// config so self-hosted gateways can re-point them.
func DefaultRegistry(ollamaBaseURL, mistralBaseURL string) *Registry {
	r := NewRegistry()
	r.Register(NewOllamaProvider(ollamaBaseURL))
	r.Register(NewOpenAIProvider())
	r.Register(NewAnthropicProvider())
	r.Register(NewMistralProvider(mistralBaseURL))
	return r
}
