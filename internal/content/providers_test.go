package content_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"github.com/calegray/voxnote/internal/content"
)

// chatResponse builds the minimal chat completion body the OpenAI-dialect
// clients expect, with text as the assistant message content.
func chatResponse(t *testing.T, text string) []byte {
	t.Helper()

	body := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": text,
				},
			},
		},
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

func TestOllamaProvider_Clean(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatResponse(t, `{"title": "Garden bed planning", "cleanedText": "Dig two beds."}`))
	}))
	defer srv.Close()

	p := content.NewOllamaProvider(srv.URL + "/v1")
	got, err := p.Clean(context.Background(), content.CleanRequest{
		Transcript: "um dig two beds",
		Vocabulary: []string{"EarthBox"},
		Model:      "llama3.2:3b",
	})
	require.NoError(t, err)
	require.Equal(t, content.CleanResult{Title: "Garden bed planning", CleanedText: "Dig two beds."}, got)

	require.Equal(t, "/v1/chat/completions", gotPath)
	require.Equal(t, "llama3.2:3b", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	require.Equal(t, "system", gotBody.Messages[0].Role)
	require.Contains(t, gotBody.Messages[1].Content, "um dig two beds")
	require.Contains(t, gotBody.Messages[1].Content, "Vocabulary to preserve: EarthBox")
}

func TestOllamaProvider_Down(t *testing.T) {
	t.Parallel()

	// Grab a port nothing listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	p := content.NewOllamaProvider("http://" + addr + "/v1")
	_, err = p.Clean(context.Background(), content.CleanRequest{
		Transcript: "dig two beds",
		Model:      "llama3.2:3b",
	})
	require.ErrorIs(t, err, content.ErrProviderUnavailable)
	require.ErrorContains(t, err, "is ollama running?")
}

func TestMistralProvider_Clean(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatResponse(t, "```json\n{\"title\": \"Standup notes\", \"cleanedText\": \"Ship the fix today.\"}\n```"))
	}))
	defer srv.Close()

	p := content.NewMistralProvider(srv.URL + "/v1")
	got, err := p.Clean(context.Background(), content.CleanRequest{
		Transcript: "we will ship the fix today",
		Model:      "mistral-small-latest",
		APIKey:     "sk-mist",
	})
	require.NoError(t, err)
	require.Equal(t, content.CleanResult{Title: "Standup notes", CleanedText: "Ship the fix today."}, got)
	require.Equal(t, "Bearer sk-mist", gotAuth)
}

func TestMistralProvider_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	p := content.NewMistralProvider(srv.URL + "/v1")
	_, err := p.Clean(context.Background(), content.CleanRequest{
		Transcript: "we will ship the fix today",
		Model:      "mistral-small-latest",
		APIKey:     "sk-mist",
	})
	require.ErrorIs(t, err, content.ErrRequestFailed)

	var reqErr *content.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "mistral", reqErr.Provider)
}

func TestOpenAIProvider_Clean(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatResponse(t, `{"title": "Meeting follow ups", "cleanedText": "Send the summary."}`))
	}))
	defer srv.Close()

	p := content.NewOpenAIProvider(option.WithBaseURL(srv.URL))
	got, err := p.Clean(context.Background(), content.CleanRequest{
		Transcript: "send the summary after the meeting",
		Model:      "gpt-4o-mini",
		APIKey:     "sk-oai",
	})
	require.NoError(t, err)
	require.Equal(t, content.CleanResult{Title: "Meeting follow ups", CleanedText: "Send the summary."}, got)
	require.True(t, strings.HasSuffix(gotPath, "/chat/completions"), gotPath)
	require.Equal(t, "Bearer sk-oai", gotAuth)
}
