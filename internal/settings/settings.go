// Package settings persists runtime-adjustable preferences: which cleanup
// provider to use, its model, vocabulary hints, and the vault location.
// Process-level configuration (ports, timeouts) stays in internal/config.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Known cleanup provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMistral   = "mistral"
)

// Default models per provider, used when Model is unset.
const (
	DefaultOllamaModel    = "llama3.2:3b"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultMistralModel   = "mistral-small-latest"
)

// Settings holds the mutable preferences read fresh on every cleanup call,
// so changes apply without restarting.
type Settings struct {
	Provider         string   `json:"provider"`
	Model            string   `json:"model,omitempty"`
	Vocabulary       []string `json:"vocabulary,omitempty"`
	VaultDir         string   `json:"vaultDir,omitempty"`
	DailyNoteBacklink bool    `json:"dailyNoteBacklink,omitempty"`
}

// EffectiveModel returns Model, or the provider default when unset.
func (s Settings) EffectiveModel() string {
	if s.Model != "" {
		return s.Model
	}
	switch s.Provider {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	case ProviderMistral:
		return DefaultMistralModel
	default:
		return DefaultOllamaModel
	}
}

// ValidProvider reports whether name is a known provider.
func ValidProvider(name string) bool {
	switch name {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderMistral:
		return true
	default:
		return false
	}
}

// DefaultSettings returns baseline preferences for first launch: the
// on-device provider, so a fresh install works without any API key.
func DefaultSettings() Settings {
	return Settings{
		Provider: ProviderOllama,
	}
}

// Store persists settings in a single JSON file on disk.
type Store struct {
	path string
}

// NewStore creates a JSON-backed settings store at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads settings from disk or returns defaults when missing.
func (s *Store) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}

		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderOllama
	}

	return cfg, nil
}

// Save writes settings as indented JSON and creates parent directories.
func (s *Store) Save(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}
