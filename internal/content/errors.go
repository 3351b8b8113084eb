package content

import (
	"errors"
	"fmt"
)

// Sentinel errors for cleanup failures. The typed errors below wrap them so
// callers branch with errors.Is while messages stay specific.
var (
	// ErrAPIKeyMissing reports that the selected provider needs a credential
	// and neither the environment nor the keychain has one.
	ErrAPIKeyMissing = errors.New("api key missing")
	// ErrProviderUnavailable reports that the selected provider cannot take
	// requests right now.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrTranscriptTooShort reports a transcript below the minimum word count.
	ErrTranscriptTooShort = errors.New("transcript too short")
	// ErrTranscriptTooLong reports a transcript over the provider's budget.
	ErrTranscriptTooLong = errors.New("transcript too long")
	// ErrRequestFailed reports a transport or API failure during cleanup.
	ErrRequestFailed = errors.New("cleanup request failed")
	// ErrResponseParsing reports a model response that could not be decoded.
	ErrResponseParsing = errors.New("cannot parse model response")
)

// UnavailableError names the unusable provider and why.
type UnavailableError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is unavailable", e.Provider)
	}
	return fmt.Sprintf("%s is unavailable: %s", e.Provider, e.Reason)
}

func (e *UnavailableError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProviderUnavailable, e.Err}
	}
	return []error{ErrProviderUnavailable}
}

// TooLongError carries the provider's character ceiling so the message can
// tell the user the actual limit.
type TooLongError struct {
	Limit int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("transcript is longer than the %d character limit for this provider", e.Limit)
}

func (e *TooLongError) Unwrap() error { return ErrTranscriptTooLong }

// RequestError reports a failed call to a provider API.
type RequestError struct {
	Provider string
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *RequestError) Unwrap() []error {
	return []error{ErrRequestFailed, e.Err}
}

// ParseError reports an undecodable model response. Snippet carries a short
// prefix of the offending text for the log line.
type ParseError struct {
	Detail  string
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("cannot parse model response: %s", e.Detail)
	}
	return fmt.Sprintf("cannot parse model response: %s: %q", e.Detail, e.Snippet)
}

func (e *ParseError) Unwrap() error { return ErrResponseParsing }
