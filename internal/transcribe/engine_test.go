package transcribe_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calegray/voxnote/internal/transcribe"
)

// scriptedRecognizer drives the engine from a test-provided function.
type scriptedRecognizer struct {
	run func(ctx context.Context, events chan<- transcribe.Event) error
}

func (r *scriptedRecognizer) Name() string {
	return "scripted"
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, _ string, events chan<- transcribe.Event) error {
	return r.run(ctx, events)
}

func send(ctx context.Context, events chan<- transcribe.Event, ev transcribe.Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func TestEngine_FinalWins(t *testing.T) {
	t.Parallel()

	rec := &scriptedRecognizer{run: func(ctx context.Context, events chan<- transcribe.Event) error {
		send(ctx, events, transcribe.Event{Kind: transcribe.EventPartial, Text: "buy milk and"})
		send(ctx, events, transcribe.Event{Kind: transcribe.EventFinal, Text: "buy milk and eggs"})
		return nil
	}}

	got, err := transcribe.NewEngine(rec, time.Second).Transcribe(context.Background(), "a.mp3")
	require.NoError(t, err)
	require.Equal(t, transcribe.Transcript{Text: "buy milk and eggs", Recognizer: "scripted"}, got)
}

func TestEngine_ErrorAfterPartialDegrades(t *testing.T) {
	t.Parallel()

	rec := &scriptedRecognizer{run: func(ctx context.Context, events chan<- transcribe.Event) error {
		send(ctx, events, transcribe.Event{Kind: transcribe.EventPartial, Text: "buy milk"})
		send(ctx, events, transcribe.Event{Kind: transcribe.EventError, Err: errors.New("stream dropped")})
		return nil
	}}

	got, err := transcribe.NewEngine(rec, time.Second).Transcribe(context.Background(), "a.mp3")
	require.NoError(t, err)
	require.True(t, got.Partial)
	require.Equal(t, "buy milk", got.Text)
}

func TestEngine_TransientErrorKeepsWaiting(t *testing.T) {
	t.Parallel()

	rec := &scriptedRecognizer{run: func(ctx context.Context, events chan<- transcribe.Event) error {
		send(ctx, events, transcribe.Event{Kind: transcribe.EventError, Err: errors.New("no speech yet"), Transient: true})
		send(ctx, events, transcribe.Event{Kind: transcribe.EventError, Err: errors.New("still nothing"), Transient: true})
		send(ctx, events, transcribe.Event{Kind: transcribe.EventFinal, Text: "made it"})
		return nil
	}}

	got, err := transcribe.NewEngine(rec, time.Second).Transcribe(context.Background(), "a.mp3")
	require.NoError(t, err)
	require.False(t, got.Partial)
	require.Equal(t, "made it", got.Text)
}

func TestEngine_TerminalErrorFails(t *testing.T) {
	t.Parallel()

	boom := errors.New("decoder exploded")
	rec := &scriptedRecognizer{run: func(ctx context.Context, events chan<- transcribe.Event) error {
		send(ctx, events, transcribe.Event{Kind: transcribe.EventError, Err: boom})
		return nil
	}}

	_, err := transcribe.NewEngine(rec, time.Second).Transcribe(context.Background(), "a.mp3")
	require.ErrorIs(t, err, boom)
}

func TestEngine_TimeoutWithNothing(t *testing.T) {
	t.Parallel()

	rec := &scriptedRecognizer{run: func(ctx context.Context, _ chan<- transcribe.Event) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	_, err := transcribe.NewEngine(rec, 40*time.Millisecond).Transcribe(context.Background(), "a.mp3")
	require.ErrorIs(t, err, transcribe.ErrTimedOut)
}

func TestEngine_TimeoutDegradesToPartial(t *testing.T) {
	t.Parallel()

	rec := &scriptedRecognizer{run: func(ctx context.Context, events chan<- transcribe.Event) error {
		send(ctx, events, transcribe.Event{Kind: transcribe.EventPartial, Text: "half a thought"})
		<-ctx.Done()
		return ctx.Err()
	}}

	got, err := transcribe.NewEngine(rec, 40*time.Millisecond).Transcribe(context.Background(), "a.mp3")
	require.NoError(t, err)
	require.True(t, got.Partial)
	require.Equal(t, "half a thought", got.Text)
}

func TestEngine_CancelAbandonsRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &scriptedRecognizer{run: func(ctx context.Context, events chan<- transcribe.Event) error {
		send(ctx, events, transcribe.Event{Kind: transcribe.EventPartial, Text: "do not keep me"})
		<-ctx.Done()
		return ctx.Err()
	}}

	time.AfterFunc(30*time.Millisecond, cancel)

	got, err := transcribe.NewEngine(rec, 5*time.Second).Transcribe(ctx, "a.mp3")
	require.ErrorIs(t, err, context.Canceled)
	// A cancelled run never degrades to its partial.
	require.Equal(t, transcribe.Transcript{}, got)
}

func TestEngine_RecognizerErrorReturn(t *testing.T) {
	t.Parallel()

	rec := &scriptedRecognizer{run: func(_ context.Context, _ chan<- transcribe.Event) error {
		return fmt.Errorf("speech service offline: %w", transcribe.ErrUnavailable)
	}}

	_, err := transcribe.NewEngine(rec, time.Second).Transcribe(context.Background(), "a.mp3")
	require.ErrorIs(t, err, transcribe.ErrUnavailable)
}

func TestEngine_QuietEndWithPartialDegrades(t *testing.T) {
	t.Parallel()

	rec := &scriptedRecognizer{run: func(ctx context.Context, events chan<- transcribe.Event) error {
		send(ctx, events, transcribe.Event{Kind: transcribe.EventPartial, Text: "almost there"})
		return nil
	}}

	got, err := transcribe.NewEngine(rec, time.Second).Transcribe(context.Background(), "a.mp3")
	require.NoError(t, err)
	require.True(t, got.Partial)
	require.Equal(t, "almost there", got.Text)
}

func TestEngine_QuietEndWithNothingFails(t *testing.T) {
	t.Parallel()

	rec := &scriptedRecognizer{run: func(_ context.Context, _ chan<- transcribe.Event) error {
		return nil
	}}

	_, err := transcribe.NewEngine(rec, time.Second).Transcribe(context.Background(), "a.mp3")
	require.ErrorContains(t, err, "finished without a transcript")
}
