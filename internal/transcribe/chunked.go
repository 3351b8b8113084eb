package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/calegray/voxnote/internal/audio"
)

const (
	// DefaultChunkWindow is the span of audio uploaded per request.
	DefaultChunkWindow = 30 * time.Second

	// chunkRetries is how many times a transiently failed window is
	// retried before it is skipped.
	chunkRetries = 2

	// DefaultRetryDelay is the first backoff after a transient window
	// failure; it doubles per retry.
	DefaultRetryDelay = 500 * time.Millisecond
)

// ErrNoSpeech marks a window the API heard nothing in. Per window it is
// emitted as a transient event; a whole run of silence fails with it.
var ErrNoSpeech = errors.New("no speech detected")

// ChunkedConfig tunes how the PCM sidecar is sliced for upload.
type ChunkedConfig struct {
	// APIKey authorizes the Whisper calls.
	APIKey string

	// Window is the span of audio per upload (default: 30s).
	Window time.Duration

	// SampleRate and Channels describe the sidecar PCM. Defaults match
	// the capture session: 16kHz mono.
	SampleRate int
	Channels   int

	// RetryDelay is the first backoff after a transient window failure
	// (default: DefaultRetryDelay).
	RetryDelay time.Duration
}

// WithDefaults returns a config with default values applied to zero fields.
func (c ChunkedConfig) WithDefaults() ChunkedConfig {
	if c.Window <= 0 {
		c.Window = DefaultChunkWindow
	}

	if c.SampleRate == 0 {
		c.SampleRate = audio.DefaultSampleRate
	}

	if c.Channels == 0 {
		c.Channels = audio.DefaultChannels
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}

	return c
}

// ChunkedRecognizer slices a raw PCM sidecar into fixed windows,
// encodes each as an in-memory WAV file, and uploads them sequentially
// to the Whisper API. It emits a growing partial transcript after every
// window, so long recordings surface text incrementally and a mid-run
// failure still leaves the engine a usable partial.
type ChunkedRecognizer struct {
	cfg ChunkedConfig

	// upload runs one window through the API. Swapped in tests.
	upload func(ctx context.Context, wavData []byte) (string, error)
}

// NewChunkedRecognizer creates a windowed recognizer for raw PCM
// sidecars.
func NewChunkedRecognizer(cfg ChunkedConfig) *ChunkedRecognizer {
	r := &ChunkedRecognizer{cfg: cfg.WithDefaults()}
	r.upload = r.whisperWindow

	return r
}

// Name identifies the recognizer in transcripts and logs.
func (r *ChunkedRecognizer) Name() string {
	return "whisper-chunked"
}

// Recognize slices the file at audioPath into windows and uploads them
// in order. audioPath must be the raw S16LE PCM sidecar written by the
// capture session, not the MP3 artifact.
//
// A silent window and a transiently failed window (rate limit, 5xx)
// each emit a transient error event and the run keeps going; any other
// failure ends the run.
func (r *ChunkedRecognizer) Recognize(ctx context.Context, audioPath string, events chan<- Event) error {
	if r.cfg.APIKey == "" {
		return fmt.Errorf("chunked whisper transcription needs an OpenAI API key: %w", ErrUnavailable)
	}

	windowBytes := r.windowBytes()
	if windowBytes <= 0 {
		return fmt.Errorf("chunk window %s is too small to hold a sample", r.cfg.Window)
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("open pcm sidecar %s: %w", audioPath, err)
	}
	defer f.Close()

	var (
		transcript strings.Builder
		windows    int
	)

	buf := make([]byte, windowBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := io.ReadFull(f, buf)
		if readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return fmt.Errorf("read pcm sidecar %s: %w", audioPath, readErr)
		}

		windows++
		text, err := r.uploadWindow(ctx, buf[:n], windows, events)
		if err != nil {
			return err
		}

		if text != "" {
			if transcript.Len() > 0 {
				transcript.WriteByte(' ')
			}
			transcript.WriteString(text)

			emit(ctx, events, Event{Kind: EventPartial, Text: transcript.String()})
		}

		if readErr == io.ErrUnexpectedEOF {
			// Short final window: end of the sidecar.
			break
		}
	}

	final := strings.TrimSpace(transcript.String())
	if final == "" {
		return fmt.Errorf("heard nothing across %d windows of %s: %w", windows, audioPath, ErrNoSpeech)
	}

	emit(ctx, events, Event{Kind: EventFinal, Text: final})

	return nil
}

// uploadWindow encodes one PCM window as WAV and uploads it, retrying
// transient failures before giving up on the window. A skipped window
// returns empty text rather than ending the run; later windows may
// still land.
func (r *ChunkedRecognizer) uploadWindow(ctx context.Context, pcm []byte, index int, events chan<- Event) (string, error) {
	wavData, err := encodeWAV(audio.BytesToInt16(pcm), r.cfg.SampleRate, r.cfg.Channels)
	if err != nil {
		return "", fmt.Errorf("encode window %d: %w", index, err)
	}

	delay := r.cfg.RetryDelay
	for attempt := 0; ; attempt++ {
		text, err := r.upload(ctx, wavData)
		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				emit(ctx, events, Event{
					Kind:      EventError,
					Err:       fmt.Errorf("window %d: %w", index, ErrNoSpeech),
					Transient: true,
				})
			}

			return text, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		if !transientUpload(err) {
			return "", fmt.Errorf("window %d: %w", index, err)
		}

		emit(ctx, events, Event{
			Kind:      EventError,
			Err:       fmt.Errorf("window %d: %w", index, err),
			Transient: true,
		})

		if attempt == chunkRetries {
			return "", nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// whisperWindow sends one WAV-encoded window through the Whisper API.
func (r *ChunkedRecognizer) whisperWindow(ctx context.Context, wavData []byte) (string, error) {
	return whisperUpload(ctx, r.cfg.APIKey,
		openai.File(bytes.NewReader(wavData), "window.wav", "audio/wav"))
}

// windowBytes is the sidecar byte span of one window of S16LE samples.
func (r *ChunkedRecognizer) windowBytes() int {
	samples := int(r.cfg.Window.Milliseconds()) * r.cfg.SampleRate / 1000

	return samples * r.cfg.Channels * 2
}
