// Package capture reads raw PCM from an audio input into a growable buffer.
package capture

import (
	"time"

	"go-stems/errs"
)

// Format describes interleaved PCM samples
type Format struct {
	SampleRate int
	BitDepth   int
	Channels   int
	Signed     bool
	BigEndian  bool
}

// CDAudio is the fixed recording format: 44000 Hz, 16-bit, stereo, signed, little-endian
var CDAudio = Format{
	SampleRate: 44000,
	BitDepth:   16,
	Channels:   2,
	Signed:     true,
}

// SampleSize is the width of one sample in bytes
func (f Format) SampleSize() int {
	return (f.BitDepth + 7) / 8
}

// FrameSize is the width of one frame (one sample per channel) in bytes
func (f Format) FrameSize() int {
	return f.SampleSize() * f.Channels
}

// BytesPerSecond is the data rate of the format
func (f Format) BytesPerSecond() int {
	return f.FrameSize() * f.SampleRate
}

// BytesFor returns the whole-frame byte count covering d
func (f Format) BytesFor(d time.Duration) int {
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * f.FrameSize()
}

// DurationOf returns the play time of n bytes
func (f Format) DurationOf(n int) time.Duration {
	rate := f.BytesPerSecond()
	if rate == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// Validate rejects formats no backend can deliver
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return errs.DeviceUnavailable(nil, "sample rate %d must be positive", f.SampleRate)
	case f.Channels <= 0:
		return errs.DeviceUnavailable(nil, "channel count %d must be positive", f.Channels)
	case f.BitDepth != 8 && f.BitDepth != 16 && f.BitDepth != 24 && f.BitDepth != 32:
		return errs.DeviceUnavailable(nil, "bit depth %d unsupported", f.BitDepth)
	}
	return nil
}
