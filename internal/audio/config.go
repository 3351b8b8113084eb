package audio

import (
	"github.com/gen2brain/malgo"
)

// DeviceConfig describes the capture device voxnote records from.
type DeviceConfig struct {
	Format          malgo.FormatType
	CaptureChannels int
	SampleRate      int

	// OnStop fires when the device stops for any reason, including the
	// backend stopping it underneath us (route change, device unplugged).
	// Runs on the audio thread; must not block.
	OnStop func()
}

// DefaultDeviceConfig returns the capture format the transcription engines
// expect: S16LE, 16 kHz, mono.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: DefaultChannels,
		SampleRate:      DefaultSampleRate,
	}
}
