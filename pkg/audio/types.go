// Package audio holds the sample plumbing between a capture device and a
// speech recognizer: a lock-free transfer ring, a pull-based signal adapter,
// a streaming linear rate converter, channel downmixing and WAV framing.
//
// Samples travel in two representations. Raw samples are normalised float32
// values in [-1.0, 1.0] as delivered by the capture device. Converted samples
// are signed 16-bit integers at the recognizer's sample rate.
package audio

import (
	"errors"
	"fmt"
)

// ErrInvalidRate is returned when a sample rate is zero or negative.
var ErrInvalidRate = errors.New("audio: sample rate must be positive")

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Validate reports whether f describes a stream this package can process.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRate, f.SampleRate)
	}
	return ValidateChannels(f.Channels)
}

// String renders f as e.g. "48000Hz/stereo".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz/mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz/stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
	}
}
