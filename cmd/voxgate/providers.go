package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/pkg/audio"
	audiomock "github.com/MrWong99/voxgate/pkg/audio/mock"
	"github.com/MrWong99/voxgate/pkg/audio/portaudio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
	"github.com/MrWong99/voxgate/pkg/provider/stt/deepgram"
	sttmock "github.com/MrWong99/voxgate/pkg/provider/stt/mock"
	"github.com/MrWong99/voxgate/pkg/provider/stt/openai"
	"github.com/MrWong99/voxgate/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires all built-in recognizer and capture source
// factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// Outbound recognizer requests carry the trace context of the utterance.
	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	// ── Recognizers ─────────────────────────────────────────────────────────

	reg.RegisterRecognizer("whisper", func(entry config.ProviderEntry, kw []stt.KeywordBoost) (stt.Recognizer, error) {
		opts := []whisper.Option{whisper.WithKeywords(kw), whisper.WithHTTPClient(client)}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := language(entry); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if entry.SampleRate > 0 {
			opts = append(opts, whisper.WithSampleRate(entry.SampleRate))
		}
		return whisper.NewServer(entry.BaseURL, opts...)
	})

	reg.RegisterRecognizer("whisper-native", func(entry config.ProviderEntry, kw []stt.KeywordBoost) (stt.Recognizer, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		opts := []whisper.NativeOption{whisper.WithNativeKeywords(kw)}
		if lang := language(entry); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := optInt(entry.Options, "threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterRecognizer("deepgram", func(entry config.ProviderEntry, kw []stt.KeywordBoost) (stt.Recognizer, error) {
		opts := []deepgram.Option{deepgram.WithKeywords(kw), deepgram.WithHTTPClient(client)}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := language(entry); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.SampleRate > 0 {
			opts = append(opts, deepgram.WithSampleRate(entry.SampleRate))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterRecognizer("openai", func(entry config.ProviderEntry, kw []stt.KeywordBoost) (stt.Recognizer, error) {
		opts := []openai.Option{openai.WithKeywords(kw), openai.WithHTTPClient(client)}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if lang := language(entry); lang != "" {
			opts = append(opts, openai.WithLanguage(lang))
		}
		if entry.SampleRate > 0 {
			opts = append(opts, openai.WithSampleRate(entry.SampleRate))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		if n := optInt(entry.Options, "max_retries"); n > 0 {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// mock answers every utterance with options.text, for dry runs of the
	// capture and segmentation path without a backend.
	reg.RegisterRecognizer("mock", func(entry config.ProviderEntry, _ []stt.KeywordBoost) (stt.Recognizer, error) {
		return &sttmock.Recognizer{
			Rate:    entry.SampleRate,
			Default: sttmock.Result{Transcript: stt.Transcript{Text: optString(entry.Options, "text")}},
		}, nil
	})

	// ── Capture sources ─────────────────────────────────────────────────────

	reg.RegisterSource("portaudio", func(c config.CaptureConfig) (audio.Source, error) {
		var opts []portaudio.Option
		if c.Device != "" {
			opts = append(opts, portaudio.WithDevice(c.Device))
		}
		if c.SampleRate > 0 {
			opts = append(opts, portaudio.WithSampleRate(c.SampleRate))
		}
		if c.Channels > 0 {
			opts = append(opts, portaudio.WithChannels(c.Channels))
		}
		if c.FramesPerBuffer > 0 {
			opts = append(opts, portaudio.WithFramesPerBuffer(c.FramesPerBuffer))
		}
		return portaudio.New(opts...)
	})

	// mock replays the WAV file named by capture.device at real-time pace.
	reg.RegisterSource("mock", newReplaySource)

	for _, name := range reg.RecognizerNames() {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
	for _, name := range reg.SourceNames() {
		slog.Debug("registered provider", "kind", "capture", "name", name)
	}
}

// replayBlock is the callback period of the replay source.
const replayBlock = 10 * time.Millisecond

func newReplaySource(c config.CaptureConfig) (audio.Source, error) {
	if c.Device == "" {
		return nil, errors.New("mock capture needs capture.device set to a WAV file")
	}
	f, err := os.Open(c.Device)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	clip, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Device, err)
	}
	frames := max(clip.Format.SampleRate*int(replayBlock)/int(time.Second), 1)
	return &audiomock.Source{
		SourceFormat:  clip.Format,
		Samples:       clip.Samples,
		BlockSize:     frames * clip.Format.Channels,
		BlockInterval: replayBlock,
	}, nil
}

// language prefers the typed field over the options map.
func language(entry config.ProviderEntry) string {
	if entry.Language != "" {
		return entry.Language
	}
	return optString(entry.Options, "language")
}

// optString extracts a string value from a provider options map. Returns ""
// if the key is missing or not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// optInt extracts an integer. YAML decodes whole numbers as int.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// optDuration accepts a Go duration string ("30s") or a number of seconds.
func optDuration(opts map[string]any, key string) time.Duration {
	if s := optString(opts, key); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			slog.Warn("ignoring invalid duration option", "key", key, "value", s, "err", err)
			return 0
		}
		return d
	}
	return time.Duration(optInt(opts, key)) * time.Second
}
