package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/calegray/voxnote/internal/audio"
)

// sink tees captured PCM into the streaming MP3 encoder and the raw sidecar
// file. The sidecar keeps the unencoded samples available for chunked
// transcription without decoding the artifact again.
type sink struct {
	mp3File *os.File
	pcmFile *os.File

	encoderInput chan []byte
	encoder      *audio.StreamingEncoder

	bytes   atomic.Int64
	errOnce sync.Once
	err     error
	failed  atomic.Bool
}

func newSink(mp3Path, pcmPath string) (*sink, error) {
	mp3File, err := os.Create(mp3Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP3 artifact %s: %w", mp3Path, err)
	}

	pcmFile, err := os.Create(pcmPath)
	if err != nil {
		_ = mp3File.Close()
		return nil, fmt.Errorf("failed to create PCM sidecar %s: %w", pcmPath, err)
	}

	encoderInput := make(chan []byte, 64)
	encoder, err := audio.NewStreamingEncoder(audio.EncoderConfig{}.WithDefaults(), encoderInput, mp3File)
	if err != nil {
		_ = mp3File.Close()
		_ = pcmFile.Close()
		return nil, fmt.Errorf("failed to create MP3 encoder: %w", err)
	}

	return &sink{
		mp3File:      mp3File,
		pcmFile:      pcmFile,
		encoderInput: encoderInput,
		encoder:      encoder,
	}, nil
}

func (k *sink) start(ctx context.Context) error {
	if err := k.encoder.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MP3 encoder: %w", err)
	}
	return nil
}

// write appends one packet to both outputs. Write failures poison the sink
// but never block the caller; the device keeps draining.
func (k *sink) write(packet []byte) {
	if k.failed.Load() {
		return
	}

	if _, err := k.pcmFile.Write(packet); err != nil {
		k.setError(fmt.Errorf("failed to write PCM sidecar: %w", err))
		return
	}

	k.encoderInput <- packet
	k.bytes.Add(int64(len(packet)))
}

func (k *sink) bytesWritten() int64 {
	return k.bytes.Load()
}

// finish flushes the encoder and closes both files. Safe to call once.
func (k *sink) finish() error {
	close(k.encoderInput)

	if err := k.encoder.Wait(); err != nil {
		k.setError(fmt.Errorf("MP3 encoding failed: %w", err))
	}
	if err := k.mp3File.Close(); err != nil {
		k.setError(fmt.Errorf("failed to close MP3 artifact: %w", err))
	}
	if err := k.pcmFile.Close(); err != nil {
		k.setError(fmt.Errorf("failed to close PCM sidecar: %w", err))
	}

	if k.failed.Load() {
		return k.err
	}
	return nil
}

func (k *sink) setError(err error) {
	if err == nil || errors.Is(err, os.ErrClosed) {
		return
	}
	k.errOnce.Do(func() {
		k.err = err
		k.failed.Store(true)
		slog.Error("recording sink error", "error", err)
	})
}
