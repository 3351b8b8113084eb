// Package keyring provides access to the system keychain for storing API keys.
package keyring

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

const serviceName = "voxnote"

// APIKey represents a named API key stored in the keychain.
type APIKey string

const (
	// OpenAI is the keychain entry for the OpenAI API key.
	OpenAI APIKey = "openai-api-key"
	// Anthropic is the keychain entry for the Anthropic API key.
	Anthropic APIKey = "anthropic-api-key"
	// Mistral is the keychain entry for the Mistral API key.
	Mistral APIKey = "mistral-api-key"
)

// ErrNotFound reports that a key has no value in the store. Absence is not a
// failure at this boundary; callers decide whether a missing key matters.
var ErrNotFound = errors.New("key not found")

// AllAPIKeys returns all known API key types for iteration.
func AllAPIKeys() []APIKey {
	return []APIKey{OpenAI, Anthropic, Mistral}
}

// DisplayName returns a human-readable name for the API key.
func (k APIKey) DisplayName() string {
	switch k {
	case OpenAI:
		return "openai"
	case Anthropic:
		return "anthropic"
	case Mistral:
		return "mistral"
	default:
		return string(k)
	}
}

// EnvVar returns the environment variable that overrides the keychain entry.
func (k APIKey) EnvVar() string {
	switch k {
	case OpenAI:
		return "OPENAI_API_KEY"
	case Anthropic:
		return "ANTHROPIC_API_KEY"
	case Mistral:
		return "MISTRAL_API_KEY"
	default:
		return ""
	}
}

// APIKeyFromServiceName maps a service name (e.g., "openai") to an APIKey.
func APIKeyFromServiceName(name string) (APIKey, error) {
	switch name {
	case "openai":
		return OpenAI, nil
	case "anthropic":
		return Anthropic, nil
	case "mistral":
		return Mistral, nil
	default:
		return "", fmt.Errorf("unknown service: %s", name)
	}
}

// Store abstracts the secret backend so tests can substitute an in-memory
// implementation.
type Store interface {
	Get(apiKey APIKey) (string, error)
	Set(apiKey APIKey, value string) error
	Delete(apiKey APIKey) error
	IsSet(apiKey APIKey) bool
}

// System is the keychain-backed Store.
type System struct{}

// NewSystem returns a Store backed by the OS keychain.
func NewSystem() System {
	return System{}
}

// Get retrieves an API key value from the system keychain.
func (System) Get(apiKey APIKey) (string, error) {
	value, err := keyring.Get(serviceName, string(apiKey))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get %s from keychain: %w", apiKey.DisplayName(), err)
	}

	return value, nil
}

// Set stores an API key value in the system keychain.
func (System) Set(apiKey APIKey, value string) error {
	if err := keyring.Set(serviceName, string(apiKey), value); err != nil {
		return fmt.Errorf("failed to set %s in keychain: %w", apiKey.DisplayName(), err)
	}

	return nil
}

// Delete removes an API key from the system keychain.
func (System) Delete(apiKey APIKey) error {
	if err := keyring.Delete(serviceName, string(apiKey)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keychain: %w", apiKey.DisplayName(), err)
	}

	return nil
}

// IsSet checks if an API key exists in the keychain.
func (s System) IsSet(apiKey APIKey) bool {
	_, err := s.Get(apiKey)

	return err == nil
}

// Memory is an in-memory Store for tests and environments without a keychain.
type Memory struct {
	mu   sync.RWMutex
	keys map[APIKey]string
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{keys: make(map[APIKey]string)}
}

func (m *Memory) Get(apiKey APIKey) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.keys[apiKey]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(apiKey APIKey, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[apiKey] = value
	return nil
}

func (m *Memory) Delete(apiKey APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[apiKey]; !ok {
		return ErrNotFound
	}
	delete(m.keys, apiKey)
	return nil
}

func (m *Memory) IsSet(apiKey APIKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[apiKey]
	return ok
}
