// Package transcribe turns a finished recording into text. It bridges
// recognizers that report results through incremental callbacks into a
// single blocking call bounded by a timeout, degrading to the latest
// partial transcript when the recognizer cannot finish cleanly.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/calegray/voxnote/pkg/oneshot"
)

// DefaultTimeout bounds a transcription run when the caller does not
// pick a budget.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTimedOut means the recognizer produced nothing at all within
	// the engine's time budget.
	ErrTimedOut = errors.New("transcription timed out")

	// ErrUnavailable means the recognizer could not run: missing
	// credentials or an unreachable speech service.
	ErrUnavailable = errors.New("transcription unavailable")
)

// EventKind classifies a recognizer callback.
type EventKind int

const (
	// EventPartial carries the best transcript so far.
	EventPartial EventKind = iota

	// EventFinal carries the complete transcript and ends the run.
	EventFinal

	// EventError reports a recognizer failure. Transient failures do
	// not end the run; the recognizer keeps working after sending one.
	EventError
)

// Event is a single recognizer callback.
type Event struct {
	Kind      EventKind
	Text      string
	Err       error
	Transient bool
}

// Recognizer streams transcription events for one audio file. The
// returned error covers failures to run at all; result-level failures
// travel as EventError. Implementations must stop sending once ctx is
// cancelled.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string, events chan<- Event) error
	Name() string
}

// Transcript is the outcome of a transcription run. Partial marks a
// degraded result assembled from callbacks received before an error or
// the timeout.
type Transcript struct {
	Text       string
	Partial    bool
	Recognizer string
}

// Engine runs a recognizer under a time budget.
type Engine struct {
	rec     Recognizer
	timeout time.Duration
}

// NewEngine wraps rec with a per-call time budget. A non-positive
// timeout falls back to DefaultTimeout.
func NewEngine(rec Recognizer, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Engine{rec: rec, timeout: timeout}
}

// outcome is what a run resolves to. Exactly one of transcript or err
// is set.
type outcome struct {
	transcript Transcript
	err        error
}

// Transcribe runs the recognizer against audioPath and blocks until the
// first of: a final transcript, a terminal error, the time budget, or
// ctx cancellation. The event listener and the timeout timer race into
// a single-use latch, so only the first resolution counts. Error events
// and timeouts degrade to the latest partial transcript when one
// exists. On cancellation the run is abandoned: the recognizer is
// stopped and ctx.Err() is returned without resolving an outcome.
func (e *Engine) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	recCtx, cancelRec := context.WithCancel(ctx)
	defer cancelRec()

	events := make(chan Event, 8)
	recErr := make(chan error, 1)
	go func() {
		recErr <- e.rec.Recognize(recCtx, audioPath, events)
		close(events)
	}()

	latch := oneshot.NewLatch[outcome]()

	// Latest partial transcript. Written only by the listener, read by
	// the timeout task.
	var partial atomic.Value
	lastPartial := func() string {
		p, _ := partial.Load().(string)
		return p
	}

	timer := time.AfterFunc(e.timeout, func() {
		if p := lastPartial(); p != "" {
			latch.Resolve(outcome{transcript: e.degraded(p)})
			return
		}

		latch.Resolve(outcome{err: fmt.Errorf("no transcription from %s within %s: %w", e.rec.Name(), e.timeout, ErrTimedOut)})
	})
	defer timer.Stop()

	go func() {
		for ev := range events {
			switch ev.Kind {
			case EventPartial:
				if ev.Text != "" {
					partial.Store(ev.Text)
				}

			case EventFinal:
				latch.Resolve(outcome{transcript: Transcript{Text: ev.Text, Recognizer: e.rec.Name()}})

			case EventError:
				p := lastPartial()
				switch {
				case p != "":
					slog.Warn("transcription degraded to partial transcript",
						"recognizer", e.rec.Name(), "error", ev.Err)
					latch.Resolve(outcome{transcript: e.degraded(p)})
				case ev.Transient:
					// Recognizer is still working; leave the latch open.
				default:
					latch.Resolve(outcome{err: ev.Err})
				}
			}
		}

		// Recognizer returned without a final event.
		if recCtx.Err() != nil {
			return
		}

		err := <-recErr
		switch p := lastPartial(); {
		case p != "" && err != nil:
			slog.Warn("transcription degraded to partial transcript",
				"recognizer", e.rec.Name(), "error", err)
			latch.Resolve(outcome{transcript: e.degraded(p)})
		case p != "":
			latch.Resolve(outcome{transcript: e.degraded(p)})
		case err != nil:
			latch.Resolve(outcome{err: err})
		default:
			latch.Resolve(outcome{err: fmt.Errorf("recognizer %s finished without a transcript", e.rec.Name())})
		}
	}()

	out, err := latch.Wait(ctx)
	if err != nil {
		// Cancelled. The deferred cancel stops the recognizer; the run
		// resolves nothing and is abandoned.
		return Transcript{}, err
	}

	return out.transcript, out.err
}

func (e *Engine) degraded(partial string) Transcript {
	return Transcript{Text: partial, Partial: true, Recognizer: e.rec.Name()}
}

// emit delivers ev unless ctx has been cancelled. Recognizers send
// through it so an abandoned run never blocks on its events channel.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
