package stt

import (
	"strings"
	"time"
)

// Transcript is the result of recognising one utterance.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// backend does not report one.
	Confidence float64

	// Language is the detected or configured language, when known.
	Language string

	// Words contains per-word detail when available. Nil for backends
	// without word-level output.
	Words []WordDetail

	// Duration is the length of the recognised audio.
	Duration time.Duration
}

// Empty reports whether the transcript carries no text.
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

// WordDetail holds per-word metadata from backends that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost is a vocabulary hint that biases recognition toward a word.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "Kubernetes").
	Keyword string

	// Boost is the intensity of the boost (backend-specific scale).
	Boost float64
}

// Keywords returns the bare keyword strings of boosts.
func Keywords(boosts []KeywordBoost) []string {
	out := make([]string, 0, len(boosts))
	for _, b := range boosts {
		if b.Keyword != "" {
			out = append(out, b.Keyword)
		}
	}
	return out
}

// SamplesDuration returns the playing time of n mono samples at rate Hz.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
