// Package content turns raw voice transcripts into cleaned notes: filler
// words removed, grammar fixed, and a short title generated. The work is
// delegated to whichever model provider the user selected in settings.
package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/calegray/voxnote/internal/keyring"
	"github.com/calegray/voxnote/internal/settings"
)

// Service runs transcript cleanup against the provider chosen in settings.
type Service struct {
	store    *settings.Store
	secrets  keyring.Store
	registry *Registry
}

// NewService creates a cleanup service.
func NewService(store *settings.Store, secrets keyring.Store, registry *Registry) *Service {
	return &Service{store: store, secrets: secrets, registry: registry}
}

// Clean rewrites rawTranscript with the configured provider and returns the
// cleaned text plus a generated title. Settings are re-read on every call so
// a provider change applies to the next recording without a restart. On any
// failure the result is empty; callers keep the raw transcript instead.
func (s *Service) Clean(ctx context.Context, rawTranscript string) (CleanResult, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return CleanResult{}, fmt.Errorf("load settings: %w", err)
	}

	provider, ok := s.registry.Provider(cfg.Provider)
	if !ok {
		return CleanResult{}, &UnavailableError{Provider: cfg.Provider, Reason: "unknown provider"}
	}

	transcript := strings.TrimSpace(rawTranscript)
	if words := len(strings.Fields(transcript)); words < MinTranscriptWords {
		return CleanResult{}, fmt.Errorf("transcript has %d words, need at least %d: %w",
			words, MinTranscriptWords, ErrTranscriptTooShort)
	}
	if budget := provider.Budget(); !budget.Fits(transcript) {
		return CleanResult{}, &TooLongError{Limit: budget.InputChars()}
	}

	apiKey, err := s.apiKey(cfg.Provider)
	if err != nil {
		return CleanResult{}, err
	}

	result, err := provider.Clean(ctx, CleanRequest{
		Transcript: transcript,
		Vocabulary: cfg.Vocabulary,
		Model:      cfg.EffectiveModel(),
		APIKey:     apiKey,
	})
	if err != nil {
		return CleanResult{}, err
	}

	result.Title = strings.TrimSpace(result.Title)
	result.CleanedText = strings.TrimSpace(result.CleanedText)
	if result.CleanedText == "" {
		return CleanResult{}, &ParseError{Detail: "model returned no cleaned text"}
	}

	return result, nil
}

// apiKey resolves the credential for provider: environment variable first,
// then the keychain. Ollama runs locally and needs none.
func (s *Service) apiKey(provider string) (string, error) {
	if provider == settings.ProviderOllama {
		return "", nil
	}

	key, err := keyring.APIKeyFromServiceName(provider)
	if err != nil {
		return "", &UnavailableError{Provider: provider, Reason: "unknown provider"}
	}
	if value := os.Getenv(key.EnvVar()); value != "" {
		return value, nil
	}

	value, err := s.secrets.Get(key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("read %s key from keychain: %w", key.DisplayName(), err)
	}
	if value == "" {
		return "", fmt.Errorf("no %s key set: export %s or run voxnote config set-key %s: %w",
			key.DisplayName(), key.EnvVar(), provider, ErrAPIKeyMissing)
	}

	return value, nil
}
