package audio

import "errors"

const (
	// DefaultSampleRate matches what the transcription API expects.
	DefaultSampleRate = 16000
	// DefaultChannels is mono capture.
	DefaultChannels = 1
	// DefaultBufferThreshold is the PCM byte count accumulated before an
	// encode pass: 4096 bytes is 2048 mono samples, about 128ms at 16kHz.
	DefaultBufferThreshold = 4096
)

// EncoderConfig configures the streaming MP3 encoder.
type EncoderConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels must be 1; the encoder duplicates to stereo internally
	// because shine-mp3 mishandles true mono input.
	Channels int

	// BufferThreshold is how many PCM bytes to buffer before encoding.
	BufferThreshold int
}

// WithDefaults fills zero fields with the package defaults.
func (c EncoderConfig) WithDefaults() EncoderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.BufferThreshold == 0 {
		c.BufferThreshold = DefaultBufferThreshold
	}

	return c
}

// Validate reports whether the config can drive the encoder.
func (c EncoderConfig) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.New("sample rate must be positive")
	case c.Channels != 1:
		return errors.New("only mono capture is supported")
	case c.BufferThreshold <= 0:
		return errors.New("buffer threshold must be positive")
	}

	return nil
}
