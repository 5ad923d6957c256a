// Package mock provides a test double for [stt.Recognizer].
//
// Recognizer returns scripted results in order and records every call so
// tests can assert on the exact utterances that reached the backend.
//
// Example:
//
//	rec := &mock.Recognizer{
//	    Rate:    16000,
//	    Results: []mock.Result{{Transcript: stt.Transcript{Text: "hello"}}},
//	}
//	tr, _ := rec.Transcribe(ctx, samples)
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// Result is one scripted answer.
type Result struct {
	Transcript stt.Transcript
	Err        error
}

// Call records one invocation of Transcribe.
type Call struct {
	// Samples is a copy of the audio passed to Transcribe.
	Samples []int16
}

// Recognizer is a mock implementation of [stt.Recognizer].
type Recognizer struct {
	mu sync.Mutex

	// Rate is returned by SampleRate. Defaults to 16000.
	Rate int

	// RecognizerName is returned by Name. Defaults to "mock".
	RecognizerName string

	// Results are returned in order. Once exhausted, Default is returned.
	Results []Result

	// Default is returned when Results is exhausted.
	Default Result

	// Delay, when non-zero, is waited before answering. A cancelled context
	// ends the wait early and returns ctx.Err().
	Delay time.Duration

	// Calls records every call to Transcribe.
	Calls []Call
}

var (
	_ stt.Recognizer = (*Recognizer)(nil)
	_ stt.Namer      = (*Recognizer)(nil)
)

// Transcribe records the call and returns the next scripted result.
func (r *Recognizer) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, Call{Samples: slices.Clone(samples)})
	res := r.Default
	if len(r.Results) > 0 {
		res = r.Results[0]
		r.Results = r.Results[1:]
	}
	delay := r.Delay
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return stt.Transcript{}, ctx.Err()
		}
	}
	return res.Transcript, res.Err
}

// SampleRate implements [stt.Recognizer].
func (r *Recognizer) SampleRate() int {
	if r.Rate == 0 {
		return 16000
	}
	return r.Rate
}

// Name implements [stt.Namer].
func (r *Recognizer) Name() string {
	if r.RecognizerName == "" {
		return "mock"
	}
	return r.RecognizerName
}

// CallCount returns the number of Transcribe calls so far.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// CallsSnapshot returns a copy of the recorded calls.
func (r *Recognizer) CallsSnapshot() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.Calls)
}
