package transcribe

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// encodeWAV renders S16 samples as a complete WAV file in memory. The
// encoder needs a seekable target because it patches the RIFF chunk
// sizes on Close.
func encodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	buf := &wavBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, 16, channels, 1)

	ib := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		ib.Data[i] = int(s)
	}

	if err := enc.Write(ib); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("write wav samples: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	return buf.data, nil
}

// wavBuffer is an in-memory io.WriteSeeker for the WAV encoder.
type wavBuffer struct {
	data []byte
	pos  int
}

func (b *wavBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		if end > cap(b.data) {
			grown := make([]byte, end, end+len(b.data))
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:end]
		}
	}

	copy(b.data[b.pos:], p)
	b.pos += len(p)

	return len(p), nil
}

func (b *wavBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("seek wav buffer: unknown whence %d", whence)
	}

	if next < 0 {
		return 0, fmt.Errorf("seek wav buffer: negative offset %d", next)
	}

	b.pos = int(next)

	return next, nil
}
