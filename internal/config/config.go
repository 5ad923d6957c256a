// Package config provides the configuration schema, loader, provider
// registry and file watcher for voxgate.
package config

import (
	"time"

	"github.com/MrWong99/voxgate/internal/segment"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Capture     CaptureConfig     `yaml:"capture"`
	Segmenter   SegmenterConfig   `yaml:"segmenter"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Hotwords    HotwordsConfig    `yaml:"hotwords"`
	Feed        FeedConfig        `yaml:"feed"`
}

// ServerConfig holds HTTP and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the health, metrics and feed server
	// (e.g. ":8080"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat is "text" or "json". Default: text.
	LogFormat string `yaml:"log_format"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// CaptureConfig selects and tunes the audio source.
type CaptureConfig struct {
	// Source names a registered source factory. Default: "portaudio".
	Source string `yaml:"source"`

	// Device selects an input device by name. Empty uses the system default.
	Device string `yaml:"device"`

	// SampleRate overrides the device's default rate. Zero keeps the default.
	SampleRate int `yaml:"sample_rate"`

	// Channels overrides the channel count. Only 1 and 2 are supported.
	Channels int `yaml:"channels"`

	// FramesPerBuffer sets the capture callback block size. Zero lets the
	// backend choose.
	FramesPerBuffer int `yaml:"frames_per_buffer"`

	// BufferSeconds sizes the transfer buffer. Default: 2.
	BufferSeconds int `yaml:"buffer_seconds"`

	// PreloadSeconds of silence are queued before capture starts. Default: 1.
	// Set to a negative value to disable.
	PreloadSeconds int `yaml:"preload_seconds"`

	// MaxPollSleep caps the consumer's idle back-off. Default: 2ms.
	MaxPollSleep time.Duration `yaml:"max_poll_sleep"`
}

// SegmenterConfig holds the live-tunable segmentation parameters.
type SegmenterConfig struct {
	// Threshold is the voicing amplitude. Default: 1500.
	Threshold int `yaml:"threshold"`

	// SilencePolicy is "wallclock" or "samples". Default: wallclock.
	SilencePolicy segment.Policy `yaml:"silence_policy"`

	// SilenceDuration ends an utterance after this much silence. Default: 5s.
	SilenceDuration time.Duration `yaml:"silence_duration"`

	// SilenceSamples overrides the quiet-run length for the samples policy.
	SilenceSamples int `yaml:"silence_samples"`

	// MaxUtterance forces a flush during continuous speech. Zero disables.
	MaxUtterance time.Duration `yaml:"max_utterance"`
}

// Segment converts the section into tunables for a stream of the given rate
// and channel count.
func (s SegmenterConfig) Segment(rate, channels int) segment.Config {
	cfg := segment.Config{
		Threshold:       s.Threshold,
		Policy:          s.SilencePolicy,
		SilenceDuration: s.SilenceDuration,
		SilenceSamples:  s.SilenceSamples,
	}
	if s.MaxUtterance > 0 {
		cfg.MaxSamples = int(s.MaxUtterance.Seconds() * float64(rate*channels))
	}
	return cfg.Resolve(rate, channels)
}

// RecognitionConfig controls how flushed utterances reach the recognizer.
type RecognitionConfig struct {
	// Timeout bounds one recognition call. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	// AttemptTimeout bounds each recognizer of a fallback chain within
	// Timeout. Zero splits Timeout evenly across the chain.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// Async hands utterances to a worker so capture processing never waits
	// for the recognizer. Default: false.
	Async bool `yaml:"async"`

	// QueueSize bounds the async queue. Default: 4.
	QueueSize int `yaml:"queue_size"`

	// CircuitBreaker tunes the per-recognizer breakers.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig mirrors the resilience breaker knobs.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ProvidersConfig declares the recognizer chain.
type ProvidersConfig struct {
	// STT is the primary recognizer.
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when the primary fails.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// ProviderEntry is the configuration block shared by all recognizers. Name
// selects the factory in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "whisper", "deepgram").
	Name string `yaml:"name"`

	// APIKey authenticates against cloud backends.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint. For "whisper" it is
	// the whisper-server address.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the backend. For "whisper-native" it is
	// the path to the ggml model file.
	Model string `yaml:"model"`

	// Language is a BCP-47 code, or empty for auto-detection.
	Language string `yaml:"language"`

	// SampleRate overrides the rate the backend is sent. Zero keeps the
	// backend's default (16 kHz for all built-ins).
	SampleRate int `yaml:"sample_rate"`

	// Options holds backend-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// HotwordsConfig lists vocabulary to bias recognition toward and to correct
// in results.
type HotwordsConfig struct {
	Words []Hotword `yaml:"words"`

	// Correct enables phonetic correction of recognised text.
	Correct bool `yaml:"correct"`

	// MinSimilarity is the Jaro-Winkler floor for a correction. Default: 0.85.
	MinSimilarity float64 `yaml:"min_similarity"`
}

// Hotword is one biased vocabulary entry.
type Hotword struct {
	Word  string  `yaml:"word"`
	Boost float64 `yaml:"boost"`
}

// Boosts converts the list for recognizers.
func (h HotwordsConfig) Boosts() []stt.KeywordBoost {
	if len(h.Words) == 0 {
		return nil
	}
	out := make([]stt.KeywordBoost, len(h.Words))
	for i, w := range h.Words {
		out[i] = stt.KeywordBoost{Keyword: w.Word, Boost: w.Boost}
	}
	return out
}

// FeedConfig controls the websocket event feed.
type FeedConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP route. Default: /events.
	Path string `yaml:"path"`

	// Buffer is the per-subscriber queue length. Default: 32.
	Buffer int `yaml:"buffer"`
}
