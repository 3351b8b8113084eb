package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// WhisperRecognizer transcribes a finished MP3 artifact in a single
// Whisper API call. It emits one final event and no partials, so a run
// either completes or fails as a whole.
type WhisperRecognizer struct {
	apiKey string
}

// NewWhisperRecognizer creates a recognizer that uploads whole
// artifacts to the Whisper API.
func NewWhisperRecognizer(apiKey string) *WhisperRecognizer {
	return &WhisperRecognizer{apiKey: apiKey}
}

// Name identifies the recognizer in transcripts and logs.
func (w *WhisperRecognizer) Name() string {
	return "whisper"
}

// Recognize uploads the artifact at audioPath and emits the resulting
// text as a final event. Any API failure is terminal for the run.
func (w *WhisperRecognizer) Recognize(ctx context.Context, audioPath string, events chan<- Event) error {
	if w.apiKey == "" {
		return fmt.Errorf("whisper transcription needs an OpenAI API key: %w", ErrUnavailable)
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("open recording %s: %w", audioPath, err)
	}
	defer f.Close()

	text, err := whisperUpload(ctx, w.apiKey, f)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", audioPath, err)
	}

	emit(ctx, events, Event{Kind: EventFinal, Text: strings.TrimSpace(text)})

	return nil
}

// whisperUpload runs one Whisper transcription call and normalizes its
// errors into the package taxonomy.
func whisperUpload(ctx context.Context, apiKey string, file io.Reader) (string, error) {
	client := openai.NewClient(option.WithAPIKey(apiKey))

	resp, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  file,
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", normalizeAPIErr(err)
	}

	return resp.Text, nil
}

// normalizeAPIErr folds SDK errors into the package taxonomy: an HTTP
// answer becomes a statusError, a failure that never reached the
// service wraps ErrUnavailable.
func normalizeAPIErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &statusError{status: apiErr.StatusCode, err: err}
	}

	return fmt.Errorf("whisper api unreachable: %w: %w", ErrUnavailable, err)
}

// statusError carries the HTTP status of a failed transcription call so
// retry logic can classify it without reaching into the SDK.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("whisper http %d: %v", e.status, e.err)
}

func (e *statusError) Unwrap() error {
	return e.err
}

// transientUpload reports whether a failed call is worth repeating:
// rate limiting or a server-side failure.
func transientUpload(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}

	return se.status == http.StatusTooManyRequests || se.status >= http.StatusInternalServerError
}
