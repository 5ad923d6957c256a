// Package stt defines the Recognizer interface for speech-to-text backends.
//
// A Recognizer is a batch transcriber: it receives one complete utterance of
// mono 16-bit PCM at its own fixed sample rate and returns the recognised
// text. Model selection, language and vocabulary hints are configured when the
// recognizer is constructed, not per call.
//
// Implementations must be safe for concurrent use, although the segmentation
// pipeline calls Transcribe from a single goroutine.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned by recognizers asked to transcribe zero samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Recognizer is the abstraction over any speech-to-text backend.
type Recognizer interface {
	// Transcribe recognises a complete utterance. samples are mono signed
	// 16-bit PCM at SampleRate. The call blocks until the backend answers or
	// ctx is done. An empty transcript with a nil error means the backend
	// heard nothing it could transcribe.
	Transcribe(ctx context.Context, samples []int16) (Transcript, error)

	// SampleRate is the rate, in Hz, at which Transcribe expects its input.
	SampleRate() int
}

// Namer is implemented by recognizers that report a stable backend name for
// logs and metrics.
type Namer interface {
	Name() string
}

// NameOf returns r's name when it implements [Namer], otherwise "unknown".
func NameOf(r Recognizer) string {
	if n, ok := r.(Namer); ok {
		return n.Name()
	}
	return "unknown"
}
