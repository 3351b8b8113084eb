// Package pipeline walks a voice note from microphone to vault: capture,
// transcribe, clean up, persist. One run at a time; every stage transition
// is observable, and a stage failure never rolls back what earlier stages
// already produced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calegray/voxnote/internal/capture"
	"github.com/calegray/voxnote/internal/content"
	"github.com/calegray/voxnote/internal/notes"
	"github.com/calegray/voxnote/internal/settings"
	"github.com/calegray/voxnote/internal/transcribe"
)

var (
	// ErrAlreadyRecording means StartRecording was called while a run is
	// active.
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	// ErrNotRecording means a capture control was used outside the capture
	// stage.
	ErrNotRecording = errors.New("no recording in progress")
	// ErrCancelled marks a run abandoned by Cancel before it completed.
	ErrCancelled = errors.New("run cancelled")
)

// State names where the coordinator sits. Stages advance strictly in order;
// Error is reachable from any active stage.
type State string

const (
	StateIdle         State = "idle"
	StateCapturing    State = "capturing"
	StateTranscribing State = "transcribing"
	StateCleaning     State = "cleaning"
	StatePersisting   State = "persisting"
	StateComplete     State = "complete"
	StateError        State = "error"
)

// Active reports whether a run currently owns the coordinator.
func (s State) Active() bool {
	switch s {
	case StateCapturing, StateTranscribing, StateCleaning, StatePersisting:
		return true
	}
	return false
}

// StageError reports which stage failed and why. errors.Is sees through it
// to the cause.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Event is one stage transition, published to subscribers. Note carries the
// freshest snapshot of the run's note once one exists; Err is set on Error
// transitions.
type Event struct {
	RunID string
	Stage State
	Note  notes.VoiceNote
	Err   error
}

// Result resolves a StopRecording call. Note is valid whenever the run got
// far enough to build one, even when Err is set.
type Result struct {
	Note notes.VoiceNote
	Err  error
}

// RunStatus is a point-in-time view for UIs. Capture gauges are live only
// while recording; Limit is non-nil once an auto-stop limit fired.
type RunStatus struct {
	RunID    string
	State    State
	Elapsed  time.Duration
	Bytes    int64
	Degraded bool
	Limit    error
	Note     notes.VoiceNote
	Err      error
}

// Recorder is the capture surface the coordinator drives. *capture.Session
// satisfies it; tests substitute fakes.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (capture.CapturedAudio, error)
	Abort()
	Pause() error
	Resume() error
	Elapsed() time.Duration
	Levels(n int) []int16
	BytesWritten() int64
	Degraded() bool
	LimitReached() error
}

// Transcriber turns a finished capture into text.
type Transcriber interface {
	Transcribe(ctx context.Context, captured capture.CapturedAudio) (transcribe.Transcript, error)
}

// Cleaner rewrites a raw transcript into a titled note body.
// *content.Service satisfies it.
type Cleaner interface {
	Clean(ctx context.Context, rawTranscript string) (content.CleanResult, error)
}

// VaultWriter exports a persisted note to the vault, returning the path of
// the markdown file relative to the vault root.
type VaultWriter interface {
	Write(ctx context.Context, n notes.VoiceNote, audioDir string) (string, error)
}

// Deps wires the coordinator's collaborators. NewRecorder returns a fresh
// single-use session per run; NewVaultWriter builds a writer for whatever
// vault is configured when the run reaches persistence.
type Deps struct {
	NewRecorder    func() Recorder
	Transcriber    Transcriber
	Cleaner        Cleaner
	Repo           *notes.Repository
	NewVaultWriter func(cfg settings.Settings) VaultWriter
	Settings       *settings.Store

	// AudioDir is where capture drops artifacts; the vault writer copies
	// attachments out of it.
	AudioDir string
}
