package capture

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/calegray/voxnote/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice mimics the malgo device: packets arrive on the channel handed
// to CaptureInto, and the stop callback fires on every stop, deliberate or
// not, like the real backend does.
type fakeDevice struct {
	mu        sync.Mutex
	conf      *audio.DeviceConfig
	dataC     chan audio.DataPacket
	started   bool
	failStart bool
	initErr   error
}

func (f *fakeDevice) EnumerateDevices(context.Context) ([]audio.Info, error) {
	return nil, nil
}

func (f *fakeDevice) Capture(ctx context.Context) (<-chan audio.DataPacket, error) {
	ch := make(chan audio.DataPacket, 64)
	if err := f.CaptureInto(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (f *fakeDevice) CaptureInto(_ context.Context, dataC chan audio.DataPacket) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.mu.Lock()
	f.dataC = dataC
	f.mu.Unlock()
	return nil
}

func (f *fakeDevice) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStart {
		return errors.New("device start failed")
	}
	f.started = true
	return nil
}

func (f *fakeDevice) Stop(context.Context) error {
	f.mu.Lock()
	wasStarted := f.started
	f.started = false
	onStop := f.conf.OnStop
	f.mu.Unlock()

	if wasStarted && onStop != nil {
		onStop()
	}
	return nil
}

func (f *fakeDevice) IsStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeDevice) Dealloc(context.Context) {}

// push feeds PCM bytes as if the microphone produced them.
func (f *fakeDevice) push(data []byte) {
	f.mu.Lock()
	ch := f.dataC
	f.mu.Unlock()
	ch <- data
}

// interrupt simulates the backend stopping the device underneath us.
func (f *fakeDevice) interrupt() {
	f.mu.Lock()
	f.started = false
	onStop := f.conf.OnStop
	f.mu.Unlock()
	if onStop != nil {
		onStop()
	}
}

func newTestSession(t *testing.T, mutate func(*fakeDevice)) (*Session, *fakeDevice) {
	t.Helper()
	fake := &fakeDevice{}
	cfg := SessionConfig{
		AudioDir:    t.TempDir(),
		MinDuration: 10 * time.Millisecond,
		NewDevice: func(conf *audio.DeviceConfig) audio.Device {
			fake.conf = conf
			if mutate != nil {
				mutate(fake)
			}
			return fake
		},
	}
	return NewSession(cfg), fake
}

func pcmBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestSessionStopProducesArtifact(t *testing.T) {
	sess, fake := newTestSession(t, nil)
	ctx := context.Background()

	require.NoError(t, sess.Start(ctx))
	assert.True(t, sess.IsRecording())

	// Roughly half a second of 16 kHz mono S16LE.
	for i := 0; i < 4; i++ {
		fake.push(pcmBytes(4096))
	}
	time.Sleep(20 * time.Millisecond)

	captured, err := sess.Stop(ctx)
	require.NoError(t, err)

	info, err := os.Stat(captured.Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	pcmInfo, err := os.Stat(captured.PCMPath)
	require.NoError(t, err)
	assert.Equal(t, int64(4*4096), pcmInfo.Size())

	assert.Greater(t, captured.Duration, time.Duration(0))
	assert.False(t, sess.IsRecording())

	sess.Discard()
	assert.NoFileExists(t, captured.PCMPath)
}

func TestSessionEmptyRecording(t *testing.T) {
	sess, _ := newTestSession(t, nil)
	ctx := context.Background()

	require.NoError(t, sess.Start(ctx))
	_, err := sess.Stop(ctx)
	require.ErrorIs(t, err, ErrEmptyRecording)
}

func TestSessionAbortDeletesTake(t *testing.T) {
	sess, fake := newTestSession(t, nil)
	ctx := context.Background()

	require.NoError(t, sess.Start(ctx))
	fake.push(pcmBytes(4096))
	time.Sleep(20 * time.Millisecond)
	mp3Path := sess.Path()

	sess.Abort()
	assert.False(t, sess.IsRecording())
	assert.NoFileExists(t, mp3Path)

	// Idempotent, and the session is spent.
	sess.Abort()
	_, err := sess.Stop(ctx)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestSessionStartTwice(t *testing.T) {
	sess, _ := newTestSession(t, nil)
	ctx := context.Background()

	require.NoError(t, sess.Start(ctx))
	require.ErrorIs(t, sess.Start(ctx), ErrAlreadyStarted)
}

func TestSessionStopBeforeStart(t *testing.T) {
	sess, _ := newTestSession(t, nil)
	_, err := sess.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestSessionPermissionDenied(t *testing.T) {
	sess, _ := newTestSession(t, func(f *fakeDevice) {
		f.initErr = errors.New("miniaudio: Access denied. | ERROR")
	})

	err := sess.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSessionPauseResume(t *testing.T) {
	sess, fake := newTestSession(t, nil)
	ctx := context.Background()

	wallStart := time.Now()
	require.NoError(t, sess.Start(ctx))
	fake.push(pcmBytes(4096))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, sess.Pause())
	assert.False(t, sess.IsRecording())

	pausedElapsed := sess.Elapsed()
	time.Sleep(30 * time.Millisecond)
	// The clock does not run while paused.
	assert.Equal(t, pausedElapsed, sess.Elapsed())

	require.NoError(t, sess.Resume())
	assert.True(t, sess.IsRecording())

	fake.push(pcmBytes(4096))
	captured, err := sess.Stop(ctx)
	require.NoError(t, err)

	// The 30ms paused span is excluded from the recorded duration.
	wall := time.Since(wallStart)
	assert.Less(t, captured.Duration, wall-25*time.Millisecond)
}

func TestSessionInterruptionResumes(t *testing.T) {
	sess, fake := newTestSession(t, nil)
	ctx := context.Background()

	require.NoError(t, sess.Start(ctx))
	fake.push(pcmBytes(4096))

	fake.interrupt()

	require.Eventually(t, sess.IsRecording, time.Second, 5*time.Millisecond,
		"session should recover from a single interruption")
	assert.False(t, sess.Degraded())

	captured, err := sess.Stop(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, captured.Path)
}

func TestSessionInterruptionDegrades(t *testing.T) {
	sess, fake := newTestSession(t, nil)
	ctx := context.Background()

	require.NoError(t, sess.Start(ctx))
	fake.push(pcmBytes(4096))

	fake.mu.Lock()
	fake.failStart = true
	fake.mu.Unlock()

	fake.interrupt()

	require.Eventually(t, sess.Degraded, time.Second, 5*time.Millisecond)
	assert.False(t, sess.IsRecording(), "a degraded session must not claim to record")

	// The audio captured before the interruption is still retrievable.
	captured, err := sess.Stop(ctx)
	require.NoError(t, err)
	info, err := os.Stat(captured.Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSessionMaxBytesAutoStops(t *testing.T) {
	fake := &fakeDevice{}
	sess := NewSession(SessionConfig{
		AudioDir:    t.TempDir(),
		MinDuration: time.Millisecond,
		MaxBytes:    8 * 1024,
		NewDevice: func(conf *audio.DeviceConfig) audio.Device {
			fake.conf = conf
			return fake
		},
	})
	ctx := context.Background()

	require.NoError(t, sess.Start(ctx))
	for i := 0; i < 3; i++ {
		fake.push(pcmBytes(4096))
	}

	require.Eventually(t, func() bool {
		return errors.Is(sess.LimitReached(), ErrMaxBytesReached)
	}, time.Second, 5*time.Millisecond)
	assert.False(t, sess.IsRecording())

	captured, err := sess.Stop(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, captured.Path)
}

func TestSessionLevels(t *testing.T) {
	sess, fake := newTestSession(t, nil)
	ctx := context.Background()

	require.NoError(t, sess.Start(ctx))
	// Two samples: 1 and -1 in S16LE.
	fake.push([]byte{0x01, 0x00, 0xFF, 0xFF})

	require.Eventually(t, func() bool {
		return len(sess.Levels(2)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int16{1, -1}, sess.Levels(2))

	fake.push(pcmBytes(8192))
	_, err := sess.Stop(ctx)
	require.NoError(t, err)
}
