package audio

import (
	"encoding/binary"
	"sync"
)

// SampleRingBuffer keeps the most recent int16 samples up to a fixed
// capacity. One goroutine writes; any number may read concurrently.
type SampleRingBuffer struct {
	mu      sync.RWMutex
	samples []int16
	written int // total samples ever written, monotonic
}

// NewSampleRingBuffer creates a ring buffer holding capacity samples.
func NewSampleRingBuffer(capacity int) *SampleRingBuffer {
	return &SampleRingBuffer{samples: make([]int16, capacity)}
}

// Write appends samples, discarding the oldest once the buffer is full.
func (b *SampleRingBuffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)

	// Only the tail of an oversized batch can survive anyway.
	if len(samples) > capacity {
		b.written += len(samples) - capacity
		samples = samples[len(samples)-capacity:]
	}

	pos := b.written % capacity
	n := copy(b.samples[pos:], samples)
	copy(b.samples, samples[n:])
	b.written += len(samples)
}

// ReadSamples returns up to n of the newest samples, oldest first.
func (b *SampleRingBuffer) ReadSamples(n int) []int16 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	avail := b.written
	capacity := len(b.samples)
	if avail > capacity {
		avail = capacity
	}
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}

	out := make([]int16, n)
	start := (b.written - n) % capacity
	m := copy(out, b.samples[start:])
	copy(out[m:], b.samples)

	return out
}

// Count reports how many valid samples the buffer currently holds.
func (b *SampleRingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.written > len(b.samples) {
		return len(b.samples)
	}

	return b.written
}

// BytesToInt16 decodes S16LE PCM bytes into samples. A trailing odd
// byte is dropped.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	if n == 0 {
		return nil
	}

	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return samples
}
