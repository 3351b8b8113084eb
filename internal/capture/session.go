// Package capture records microphone audio into an MP3 artifact with a raw
// PCM sidecar, surviving device interruptions where the backend allows it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calegray/voxnote/internal/audio"
	"github.com/google/uuid"
)

var (
	// ErrPermissionDenied means the OS refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrEmptyRecording means Stop found an artifact with no audio in it.
	ErrEmptyRecording = errors.New("recording produced no audio")
	// ErrAlreadyStarted means Start was called on a running session.
	ErrAlreadyStarted = errors.New("capture session already started")
	// ErrNotStarted means Stop/Pause/Resume was called before Start.
	ErrNotStarted = errors.New("capture session not started")

	// Limit sentinels, reported through LimitReached after an auto-stop.
	ErrMaxDurationReached = errors.New("max duration reached")
	ErrMaxBytesReached    = errors.New("max bytes reached")
)

const (
	// DefaultMinDuration guards against stop-right-after-start taps that
	// would produce an empty artifact.
	DefaultMinDuration = 500 * time.Millisecond
	// DefaultMaxDuration caps a runaway recording session.
	DefaultMaxDuration = 15 * time.Minute
	// DefaultMaxBytes caps PCM accumulation (~34 min at 16 kHz mono S16LE).
	DefaultMaxBytes = 64 << 20
	// DefaultRingCapacity holds one second of samples for the level meter.
	DefaultRingCapacity = 16_000
)

// SessionConfig configures one recording session.
type SessionConfig struct {
	// AudioDir receives the MP3 artifact and its PCM sidecar.
	AudioDir string

	MinDuration  time.Duration
	MaxDuration  time.Duration
	MaxBytes     int64
	RingCapacity int

	// NewDevice builds the capture device; tests substitute a fake.
	NewDevice func(*audio.DeviceConfig) audio.Device
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.MinDuration == 0 {
		c.MinDuration = DefaultMinDuration
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.RingCapacity == 0 {
		c.RingCapacity = DefaultRingCapacity
	}
	if c.NewDevice == nil {
		c.NewDevice = audio.NewDevice
	}
	return c
}

// CapturedAudio describes a finished recording.
type CapturedAudio struct {
	Path     string // MP3 artifact
	PCMPath  string // raw S16LE sidecar, removed by Discard
	Duration time.Duration
}

// Session is one interruption-aware recording. Not reusable after Stop.
type Session struct {
	cfg SessionConfig

	mu      sync.Mutex
	dev     audio.Device
	dataC   chan audio.DataPacket
	sink    *sink
	ring    *audio.SampleRingBuffer
	path    string
	pcmPath string

	startAt  time.Time
	started  bool
	stopped  bool
	pumpDone chan struct{}

	// Pause bookkeeping is atomic so the pump can check limits without
	// taking the session lock Stop holds while waiting for it.
	pausedAtNS    atomic.Int64
	pausedTotalNS atomic.Int64

	// Read from the audio thread's stop callback; no locks there.
	recording atomic.Bool
	paused    atomic.Bool
	stopping  atomic.Bool
	degraded  atomic.Bool
	resumed   atomic.Bool // the single automatic resume attempt was spent

	limitErr atomic.Value // error
}

// NewSession prepares a session; no device is touched until Start.
func NewSession(cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg:  cfg,
		ring: audio.NewSampleRingBuffer(cfg.RingCapacity),
	}
}

// Start allocates the capture device and begins recording into a fresh
// artifact under the audio dir. Permission refusals map to
// ErrPermissionDenied; anything else is a wrapped device error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	if err := os.MkdirAll(s.cfg.AudioDir, 0o755); err != nil {
		return fmt.Errorf("failed to create audio dir: %w", err)
	}

	s.path = filepath.Join(s.cfg.AudioDir, uuid.NewString()+".mp3")
	s.pcmPath = s.path + ".pcm"

	devConf := audio.DefaultDeviceConfig()
	devConf.OnStop = s.onDeviceStop

	s.dev = s.cfg.NewDevice(devConf)
	s.dataC = make(chan audio.DataPacket, 64)

	if err := s.dev.CaptureInto(ctx, s.dataC); err != nil {
		return classifyDeviceErr("failed to allocate capture device", err)
	}

	snk, err := newSink(s.path, s.pcmPath)
	if err != nil {
		s.dev.Dealloc(ctx)
		return err
	}
	s.sink = snk

	if err := s.sink.start(ctx); err != nil {
		s.dev.Dealloc(ctx)
		return err
	}

	if err := s.dev.Start(ctx); err != nil {
		s.dev.Dealloc(ctx)
		return classifyDeviceErr("failed to start capture device", err)
	}

	s.startAt = time.Now()
	s.started = true
	s.pumpDone = make(chan struct{})
	s.recording.Store(true)

	go s.pump()

	slog.Info("recording started", "artifact", s.path)

	return nil
}

// pump moves device packets into the sink and the level ring buffer, and
// enforces the session limits. It exits when Stop closes the data channel.
func (s *Session) pump() {
	defer close(s.pumpDone)

	for packet := range s.dataC {
		if s.limitErr.Load() != nil {
			// Device stop is underway; drain without writing.
			continue
		}

		s.sink.write(packet)
		s.ring.Write(audio.BytesToInt16(packet))

		if s.sink.bytesWritten() >= s.cfg.MaxBytes {
			s.hitLimit(ErrMaxBytesReached)
			continue
		}
		if s.elapsedFree() >= s.cfg.MaxDuration {
			s.hitLimit(ErrMaxDurationReached)
		}
	}
}

// hitLimit auto-stops the device; the recorded audio up to here stays valid
// and Stop returns it normally.
func (s *Session) hitLimit(sentinel error) {
	s.limitErr.Store(sentinel)
	s.stopping.Store(true)
	s.recording.Store(false)

	slog.Info("recording stopped", "reason", sentinel.Error(),
		"bytes", s.sink.bytesWritten(), "elapsed", s.elapsedFree())

	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.dev != nil {
			if err := s.dev.Stop(context.Background()); err != nil {
				slog.Warn("failed to stop device at limit", "error", err)
			}
		}
	}()
}

// onDeviceStop runs on the audio backend's thread whenever the device stops.
// Deliberate stops (Stop, Pause, limit) are expected; anything else is an
// interruption that gets one automatic resume attempt.
func (s *Session) onDeviceStop() {
	if s.stopping.Load() || s.paused.Load() {
		return
	}
	if !s.recording.Load() {
		return
	}

	s.recording.Store(false)
	slog.Warn("capture device stopped externally")

	if !s.resumed.CompareAndSwap(false, true) {
		// Resume already spent; stay degraded.
		s.degraded.Store(true)
		return
	}

	go s.tryResume()
}

// tryResume makes the single automatic restart attempt after an interruption.
func (s *Session) tryResume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping.Load() || s.dev == nil {
		return
	}

	if err := s.dev.Start(context.Background()); err != nil || !s.dev.IsStarted() {
		s.degraded.Store(true)
		slog.Error("capture device did not resume after interruption", "error", err)
		return
	}

	s.recording.Store(true)
	slog.Info("capture device resumed after interruption")
}

// Stop finishes the recording: waits out the minimum duration, stops the
// device, flushes the encoder, and verifies the artifact holds audio.
func (s *Session) Stop(ctx context.Context) (CapturedAudio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return CapturedAudio{}, ErrNotStarted
	}
	if s.stopped {
		return CapturedAudio{}, ErrNotStarted
	}
	s.stopped = true
	s.stopping.Store(true)

	// A stop racing the start would truncate the artifact to nothing.
	if wait := s.cfg.MinDuration - s.elapsedFree(); wait > 0 && s.limitErr.Load() == nil {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			// The stop never happened; the session keeps recording and a
			// later Stop or Abort still works.
			s.stopped = false
			s.stopping.Store(false)
			return CapturedAudio{}, ctx.Err()
		}
	}

	// Duration must be read before finalizing; the sink flush below is not
	// part of the recording.
	duration := s.elapsedFree()

	if err := s.dev.Stop(ctx); err != nil {
		slog.Warn("failed to stop capture device", "error", err)
	}
	close(s.dataC)
	<-s.pumpDone
	s.dev.Dealloc(ctx)
	s.recording.Store(false)

	if err := s.sink.finish(); err != nil {
		return CapturedAudio{}, fmt.Errorf("failed to finalize recording: %w", err)
	}

	info, err := os.Stat(s.path)
	if err != nil || info.Size() == 0 {
		s.removeArtifacts()
		return CapturedAudio{}, fmt.Errorf("artifact %s: %w", s.path, ErrEmptyRecording)
	}

	slog.Info("recording stopped", "artifact", s.path,
		"duration", duration, "bytes", info.Size())

	return CapturedAudio{
		Path:     s.path,
		PCMPath:  s.pcmPath,
		Duration: duration,
	}, nil
}

// Pause stops the device without finalizing; paused time is excluded from
// Elapsed.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return ErrNotStarted
	}
	if s.paused.Load() {
		return nil
	}

	s.pausedAtNS.Store(time.Now().UnixNano())
	s.paused.Store(true)
	if err := s.dev.Stop(context.Background()); err != nil {
		s.paused.Store(false)
		return fmt.Errorf("failed to pause capture device: %w", err)
	}

	s.recording.Store(false)

	return nil
}

// Resume restarts the device after Pause.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return ErrNotStarted
	}
	if !s.paused.Load() {
		return nil
	}

	if err := s.dev.Start(context.Background()); err != nil {
		return classifyDeviceErr("failed to resume capture device", err)
	}

	s.pausedTotalNS.Add(time.Now().UnixNano() - s.pausedAtNS.Load())
	s.paused.Store(false)
	s.recording.Store(true)

	return nil
}

// Elapsed reports recording time excluding paused spans.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return 0
	}
	return s.elapsedFree()
}

// elapsedFree is the lock-free variant the pump uses; callers must know the
// session has started.
func (s *Session) elapsedFree() time.Duration {
	pausedTotal := time.Duration(s.pausedTotalNS.Load())
	if s.paused.Load() {
		return time.Duration(s.pausedAtNS.Load()-s.startAt.UnixNano()) - pausedTotal
	}
	return time.Since(s.startAt) - pausedTotal
}

// IsRecording is true only while the device is actually capturing.
func (s *Session) IsRecording() bool {
	if !s.recording.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil && s.dev.IsStarted()
}

// Degraded reports an interruption the session could not recover from.
func (s *Session) Degraded() bool {
	return s.degraded.Load()
}

// LimitReached reports which session limit auto-stopped the recording, nil
// when none did.
func (s *Session) LimitReached() error {
	if err, ok := s.limitErr.Load().(error); ok {
		return err
	}
	return nil
}

// Levels returns up to n recent samples for the level meter.
func (s *Session) Levels(n int) []int16 {
	return s.ring.ReadSamples(n)
}

// BytesWritten reports PCM bytes captured so far.
func (s *Session) BytesWritten() int64 {
	s.mu.Lock()
	snk := s.sink
	s.mu.Unlock()
	if snk == nil {
		return 0
	}
	return snk.bytesWritten()
}

// Path returns the MP3 artifact path, empty before Start.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Abort stops the device and deletes both artifacts. The take is gone; use
// Stop to keep it.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return
	}
	s.stopped = true
	s.stopping.Store(true)

	if err := s.dev.Stop(context.Background()); err != nil {
		slog.Warn("failed to stop capture device", "error", err)
	}
	close(s.dataC)
	<-s.pumpDone
	s.dev.Dealloc(context.Background())
	s.recording.Store(false)

	if err := s.sink.finish(); err != nil {
		slog.Debug("finalize aborted recording", "error", err)
	}
	s.removeArtifacts()

	slog.Info("recording aborted", "artifact", s.path)
}

// removeArtifacts deletes the MP3 and PCM files of a dead take. Callers hold
// the session lock.
func (s *Session) removeArtifacts() {
	for _, p := range []string{s.path, s.pcmPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove dead artifact", "path", p, "error", err)
		}
	}
}

// Discard removes the PCM sidecar once downstream stages no longer need it.
func (s *Session) Discard() {
	s.mu.Lock()
	pcmPath := s.pcmPath
	s.mu.Unlock()

	if pcmPath == "" {
		return
	}
	if err := os.Remove(pcmPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove PCM sidecar", "path", pcmPath, "error", err)
	}
}

func classifyDeviceErr(msg string, err error) error {
	if audio.IsPermissionError(err) {
		return fmt.Errorf("%s: %w", msg, ErrPermissionDenied)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
