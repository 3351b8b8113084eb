// Package notes holds the voice note model and its file-backed repository.
package notes

import (
	"time"

	"github.com/google/uuid"
)

// Status describes where a note sits in its lifecycle. It is derived from
// the persisted fields, never stored.
type Status string

const (
	// StatusProcessing means the pipeline has not finished with this note.
	StatusProcessing Status = "processing"
	// StatusComplete means cleanup produced text and no stage failed.
	StatusComplete Status = "complete"
	// StatusError means a pipeline stage failed; LastError holds the detail.
	StatusError Status = "error"
)

// VoiceNote is one captured recording and everything derived from it.
// Field names are stable; optional fields decode to their zero value when
// absent so old collection files keep loading.
type VoiceNote struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	RawTranscript string    `json:"rawTranscript"`
	CleanedText   string    `json:"cleanedText"`
	Duration      float64   `json:"durationSeconds"`
	CreatedAt     time.Time `json:"createdAt"`
	AudioFile     string    `json:"audioFile"`
	VaultPath     string    `json:"vaultPath,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Model         string    `json:"model,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
}

// New creates a note for a finished capture. ID and CreatedAt are assigned
// here; transcript, cleanup, and vault fields are filled by later stages.
func New(rawTranscript string, durationSeconds float64, audioFile string) VoiceNote {
	return VoiceNote{
		ID:            uuid.NewString(),
		RawTranscript: rawTranscript,
		Duration:      durationSeconds,
		CreatedAt:     time.Now().UTC(),
		AudioFile:     audioFile,
	}
}

// Status derives the lifecycle state. A note with cleaned text is complete
// unless a later stage recorded an error.
func (n VoiceNote) Status() Status {
	if n.LastError != "" {
		return StatusError
	}
	if n.CleanedText != "" {
		return StatusComplete
	}
	return StatusProcessing
}

// DisplayText returns the cleaned text when present, falling back to the raw
// transcript for notes whose cleanup failed or has not run.
func (n VoiceNote) DisplayText() string {
	if n.CleanedText != "" {
		return n.CleanedText
	}
	return n.RawTranscript
}

// DisplayTitle returns the title, or a timestamp placeholder for notes that
// never got one.
func (n VoiceNote) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return "Voice note " + n.CreatedAt.Format("2006-01-02 15:04")
}
