// This file contains the Native recognizer backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

var (
	_ stt.Recognizer = (*Native)(nil)
	_ stt.Namer      = (*Native)(nil)
)

// Native implements [stt.Recognizer] in-process through the whisper.cpp Go
// bindings. The model is loaded once by [NewNative]; every Transcribe call
// runs on a fresh whisper context created from it.
type Native struct {
	model    whisperlib.Model
	language string
	threads  uint
	prompt   string

	// whisper.cpp contexts are not cancellable; mu serialises inference so
	// that concurrent callers queue instead of multiplying CPU load.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a Native recognizer.
type NativeOption func(*Native)

// WithNativeLanguage sets the language code for transcription (e.g., "en",
// "de"). "auto" enables detection on multilingual models. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithNativeThreads sets the number of inference threads. Zero keeps the
// whisper.cpp default.
func WithNativeThreads(threads uint) NativeOption {
	return func(n *Native) { n.threads = threads }
}

// WithNativeKeywords biases decoding toward the given vocabulary by passing
// it to whisper.cpp as the initial prompt.
func WithNativeKeywords(keywords []stt.KeywordBoost) NativeOption {
	return func(n *Native) { n.prompt = keywordPrompt(keywords) }
}

// NewNative loads the whisper.cpp model at modelPath. The caller must call
// Close when the recognizer is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Name implements [stt.Namer].
func (n *Native) Name() string { return "whisper-native" }

// SampleRate implements [stt.Recognizer]. whisper.cpp always consumes 16 kHz.
func (n *Native) SampleRate() int { return whisperlib.SampleRate }

// Close releases the whisper model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe implements [stt.Recognizer]. The context is checked before
// inference starts; whisper.cpp itself cannot be interrupted mid-run.
func (n *Native) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	if len(samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "error", err)
	}
	if n.threads > 0 {
		wctx.SetThreads(n.threads)
	}
	if n.prompt != "" {
		wctx.SetInitialPrompt(n.prompt)
	}

	if err := wctx.Process(pcmToFloat32(samples), nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts   []string
		words   []stt.WordDetail
		probSum float64
		probN   int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			text := strings.TrimSpace(tok.Text)
			if text == "" || strings.HasPrefix(text, "[_") {
				continue
			}
			probSum += float64(tok.P)
			probN++
			words = append(words, stt.WordDetail{
				Word:       text,
				Start:      tok.Start,
				End:        tok.End,
				Confidence: float64(tok.P),
			})
		}
	}

	tr := stt.Transcript{
		Text:     strings.Join(parts, " "),
		Language: wctx.DetectedLanguage(),
		Words:    words,
		Duration: stt.SamplesDuration(len(samples), whisperlib.SampleRate),
	}
	if probN > 0 {
		tr.Confidence = probSum / float64(probN)
	}
	return tr, nil
}
