package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calegray/voxnote/internal/notes"
	"github.com/calegray/voxnote/pkg/channels"
)

// Coordinator owns the single active run and its state machine. All methods
// are safe for concurrent use.
type Coordinator struct {
	deps Deps

	mu        sync.Mutex
	state     State
	runID     string
	rec       Recorder
	runCancel context.CancelFunc
	note      notes.VoiceNote
	lastErr   error

	events *channels.Broadcaster[Event]
	eventC chan<- Event
	subs   int
}

// NewCoordinator builds an idle coordinator around deps.
func NewCoordinator(deps Deps) *Coordinator {
	return &Coordinator{
		deps:   deps,
		state:  StateIdle,
		events: channels.NewBroadcaster[Event](),
	}
}

// Events subscribes ch to stage transitions. Subscribe before Run; slow
// subscribers miss events rather than stalling the pipeline.
func (c *Coordinator) Events(ch chan<- Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.events.Subscribe(ch); err != nil {
		return err
	}
	c.subs++
	return nil
}

// Run starts the event fan-out, which stops when ctx is cancelled. Without
// subscribers there is nothing to fan out and Run is a no-op.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs == 0 {
		return nil
	}
	in, err := c.events.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start event broadcaster: %w", err)
	}
	c.eventC = in
	return nil
}

// StartRecording opens a fresh capture session. One run at a time: a second
// call while any stage is active returns ErrAlreadyRecording. On failure the
// coordinator stays where it was.
func (c *Coordinator) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Active() {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	rec := c.deps.NewRecorder()
	runID := uuid.NewString()
	prev := c.state
	c.state = StateCapturing
	c.runID = runID
	c.rec = rec
	c.note = notes.VoiceNote{}
	c.mu.Unlock()

	if err := rec.Start(ctx); err != nil {
		c.mu.Lock()
		if c.runID == runID {
			c.state = prev
			c.runID = ""
			c.rec = nil
		}
		c.mu.Unlock()
		return fmt.Errorf("failed to start recording: %w", err)
	}

	c.mu.Lock()
	cancelled := c.runID != runID || c.state != StateCapturing
	c.mu.Unlock()
	if cancelled {
		// Cancel won the race while the device spun up.
		rec.Abort()
		return ErrCancelled
	}

	slog.Info("recording started", "run", runID)
	c.publish(Event{RunID: runID, Stage: StateCapturing})
	return nil
}

// StopRecording finalizes the capture and chains transcription, cleanup,
// and persistence in the background. The returned channel resolves exactly
// once with the final Result; ctx bounds the whole chain.
func (c *Coordinator) StopRecording(ctx context.Context) <-chan Result {
	resultC := make(chan Result, 1)

	c.mu.Lock()
	if c.state != StateCapturing || c.rec == nil {
		c.mu.Unlock()
		resultC <- Result{Err: ErrNotRecording}
		return resultC
	}
	rec := c.rec
	runID := c.runID
	runCtx, cancel := context.WithCancel(ctx)
	c.runCancel = cancel
	c.mu.Unlock()

	go c.run(runCtx, runID, rec, resultC)
	return resultC
}

// run drives the post-capture stages. Stage failures keep whatever earlier
// stages persisted; nothing is rolled back.
func (c *Coordinator) run(ctx context.Context, runID string, rec Recorder, resultC chan<- Result) {
	defer c.release()

	captured, err := rec.Stop(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled before the take could be finalized; discard it.
			rec.Abort()
			err = ErrCancelled
		}
		c.fail(runID, StateCapturing, err, notes.VoiceNote{}, resultC)
		return
	}

	n := notes.New("", captured.Duration.Seconds(), filepath.Base(captured.Path))
	c.transition(runID, StateTranscribing, n)

	transcript, terr := c.deps.Transcriber.Transcribe(ctx, captured)
	// The PCM sidecar only feeds transcription; it goes either way.
	if captured.PCMPath != "" {
		if err := os.Remove(captured.PCMPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove pcm sidecar", "path", captured.PCMPath, "error", err)
		}
	}
	if terr != nil {
		cause := terr
		if ctx.Err() != nil {
			cause = ErrCancelled
		}
		c.failPersisted(ctx, runID, StateTranscribing, cause, n, resultC)
		return
	}
	if transcript.Partial {
		slog.Warn("transcription degraded to a partial result",
			"run", runID, "recognizer", transcript.Recognizer)
	}
	n.RawTranscript = transcript.Text

	c.transition(runID, StateCleaning, n)

	cfg, err := c.deps.Settings.Load()
	if err != nil {
		c.failPersisted(ctx, runID, StateCleaning, fmt.Errorf("failed to load settings: %w", err), n, resultC)
		return
	}

	// The in-flight call may finish; cancellation lands between stages.
	cleaned, cerr := c.deps.Cleaner.Clean(context.WithoutCancel(ctx), n.RawTranscript)
	if ctx.Err() != nil {
		// Cancelled while the model worked. Keep the raw note, drop the
		// result.
		c.failPersisted(ctx, runID, StateCleaning, ErrCancelled, n, resultC)
		return
	}
	if cerr != nil {
		c.failPersisted(ctx, runID, StateCleaning, cerr, n, resultC)
		return
	}
	n.Title = cleaned.Title
	n.CleanedText = cleaned.CleanedText
	n.Provider = cfg.Provider
	n.Model = cfg.EffectiveModel()

	c.transition(runID, StatePersisting, n)

	persistCtx := context.WithoutCancel(ctx)
	if err := c.deps.Repo.Add(persistCtx, n); err != nil {
		c.fail(runID, StatePersisting, fmt.Errorf("failed to save note: %w", err), n, resultC)
		return
	}
	if ctx.Err() != nil {
		// The note is safe in the repository; only the vault copy is
		// skipped. vault retry picks it up later.
		c.fail(runID, StatePersisting, ErrCancelled, n, resultC)
		return
	}

	if strings.TrimSpace(cfg.VaultDir) == "" {
		// No vault configured; the repository copy is the whole of
		// persistence.
		c.complete(runID, n, resultC)
		return
	}

	relPath, verr := c.deps.NewVaultWriter(cfg).Write(persistCtx, n, c.deps.AudioDir)
	if verr != nil {
		n.LastError = (&StageError{Stage: StatePersisting, Err: verr}).Error()
		if uerr := c.deps.Repo.Update(persistCtx, n); uerr != nil {
			slog.Warn("failed to record vault error on note", "note", n.ID, "error", uerr)
		}
		c.fail(runID, StatePersisting, verr, n, resultC)
		return
	}

	n.VaultPath = relPath
	if err := c.deps.Repo.Update(persistCtx, n); err != nil {
		c.fail(runID, StatePersisting, fmt.Errorf("failed to record vault path: %w", err), n, resultC)
		return
	}
	c.complete(runID, n, resultC)
}

// Cancel abandons the active run. During capture the take is discarded
// outright. Later stages stop at the next checkpoint; anything already
// persisted stays.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.runCancel != nil {
		cancel := c.runCancel
		c.mu.Unlock()
		cancel()
		return
	}
	if c.state != StateCapturing {
		c.mu.Unlock()
		return
	}
	rec := c.rec
	runID := c.runID
	stageErr := &StageError{Stage: StateCapturing, Err: ErrCancelled}
	c.state = StateError
	c.lastErr = stageErr
	c.rec = nil
	c.mu.Unlock()

	if rec != nil {
		rec.Abort()
	}
	slog.Info("recording cancelled", "run", runID)
	c.publish(Event{RunID: runID, Stage: StateError, Err: stageErr})
}

// Pause suspends capture; Elapsed stops counting until Resume.
func (c *Coordinator) Pause() error {
	rec, ok := c.activeRecorder()
	if !ok {
		return ErrNotRecording
	}
	return rec.Pause()
}

// Resume restarts a paused capture.
func (c *Coordinator) Resume() error {
	rec, ok := c.activeRecorder()
	if !ok {
		return ErrNotRecording
	}
	return rec.Resume()
}

// Levels returns up to n recent samples for the input meter, newest last.
// Nil outside the capture stage.
func (c *Coordinator) Levels(n int) []int16 {
	rec, ok := c.activeRecorder()
	if !ok {
		return nil
	}
	return rec.Levels(n)
}

func (c *Coordinator) activeRecorder() (Recorder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCapturing || c.rec == nil {
		return nil, false
	}
	return c.rec, true
}

// State reports where the coordinator sits.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot reports the active run for UIs.
func (c *Coordinator) Snapshot() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := RunStatus{
		RunID: c.runID,
		State: c.state,
		Note:  c.note,
		Err:   c.lastErr,
	}
	if c.rec != nil {
		st.Elapsed = c.rec.Elapsed()
		st.Bytes = c.rec.BytesWritten()
		st.Degraded = c.rec.Degraded()
		st.Limit = c.rec.LimitReached()
	}
	return st
}

// LastError returns the most recent run failure. It stays until dismissed;
// a newer failure replaces it.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// DismissError clears the held failure and returns an errored coordinator
// to Idle.
func (c *Coordinator) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = nil
	if c.state == StateError {
		c.state = StateIdle
	}
}

// transition advances the run and publishes the new stage. The note snapshot
// rides along so subscribers never need a repository read.
func (c *Coordinator) transition(runID string, stage State, n notes.VoiceNote) {
	c.mu.Lock()
	c.state = stage
	c.note = n
	c.mu.Unlock()

	slog.Debug("pipeline stage", "run", runID, "stage", stage)
	c.publish(Event{RunID: runID, Stage: stage, Note: n})
}

// fail moves the run to Error without touching the repository.
func (c *Coordinator) fail(runID string, stage State, cause error, n notes.VoiceNote, resultC chan<- Result) {
	stageErr := &StageError{Stage: stage, Err: cause}

	c.mu.Lock()
	c.state = StateError
	c.lastErr = stageErr
	c.note = n
	c.mu.Unlock()

	slog.Error("pipeline stage failed", "run", runID, "stage", stage, "error", cause)
	c.publish(Event{RunID: runID, Stage: StateError, Note: n, Err: stageErr})
	resultC <- Result{Note: n, Err: stageErr}
}

// failPersisted keeps what the run produced: the note lands in the
// repository with the failure recorded, then the run moves to Error.
func (c *Coordinator) failPersisted(ctx context.Context, runID string, stage State, cause error, n notes.VoiceNote, resultC chan<- Result) {
	n.LastError = (&StageError{Stage: stage, Err: cause}).Error()
	if err := c.deps.Repo.Add(context.WithoutCancel(ctx), n); err != nil {
		slog.Warn("failed to save note after stage failure", "note", n.ID, "error", err)
	}
	c.fail(runID, stage, cause, n, resultC)
}

func (c *Coordinator) complete(runID string, n notes.VoiceNote, resultC chan<- Result) {
	c.mu.Lock()
	c.state = StateComplete
	c.note = n
	c.mu.Unlock()

	slog.Info("voice note ready", "note", n.ID, "title", n.Title, "vault", n.VaultPath)
	c.publish(Event{RunID: runID, Stage: StateComplete, Note: n})
	resultC <- Result{Note: n}
}

// release drops run-scoped resources once the chain resolves.
func (c *Coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
	c.rec = nil
}

// publishTimeout bounds how long a stage transition waits on the event
// fan-out before dropping.
const publishTimeout = 50 * time.Millisecond

// publish pushes an event to subscribers. Drops are survivable: events
// advise UIs, state lives in the coordinator.
func (c *Coordinator) publish(ev Event) {
	c.mu.Lock()
	ch := c.eventC
	c.mu.Unlock()

	if ch == nil {
		return
	}
	if err := channels.SendWithTimeout(ch, ev, publishTimeout); err != nil {
		slog.Debug("dropped pipeline event", "stage", ev.Stage, "error", err)
	}
}
