package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// snippetLen caps how much of a bad response lands in error messages.
const snippetLen = 80

// ParseCloudResponse decodes the JSON object a chat model was asked to
// return. Models wrap the object in markdown fences or commentary often
// enough that the parser hunts for the outermost braces before decoding.
// A response that cannot be decoded is an error; raw model text never
// passes as cleaned output.
func ParseCloudResponse(raw string) (CleanResult, error) {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return CleanResult{}, &ParseError{Detail: "empty response"}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return CleanResult{}, &ParseError{Detail: "no JSON object in response", Snippet: snippet(text)}
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return CleanResult{}, &ParseError{Detail: "JSON object never closes, response looks truncated", Snippet: snippet(text)}
	}
	body := text[start : end+1]

	// Pointer fields tell a missing key apart from an empty value.
	var payload struct {
		Title       *string `json:"title"`
		CleanedText *string `json:"cleanedText"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return CleanResult{}, decodeError(err, body)
	}
	if payload.Title == nil {
		return CleanResult{}, &ParseError{Detail: `response has no "title" field`, Snippet: snippet(body)}
	}
	if payload.CleanedText == nil {
		return CleanResult{}, &ParseError{Detail: `response has no "cleanedText" field`, Snippet: snippet(body)}
	}

	return CleanResult{Title: *payload.Title, CleanedText: *payload.CleanedText}, nil
}

// decodeError tells a field of the wrong type apart from malformed JSON.
func decodeError(err error, body string) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ParseError{
			Detail:  fmt.Sprintf("field %q is %s, want string", typeErr.Field, typeErr.Value),
			Snippet: snippet(body),
		}
	}
	return &ParseError{Detail: fmt.Sprintf("invalid JSON: %v", err), Snippet: snippet(body)}
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.Contains(s[:i], "{") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= snippetLen {
		return s
	}
	return s[:snippetLen] + "..."
}
