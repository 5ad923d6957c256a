package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voxgate/internal/segment"
)

// ValidProviderNames lists the built-in implementation names per kind. Used
// by [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"stt":     {"whisper", "whisper-native", "deepgram", "openai", "mock"},
	"capture": {"portaudio", "mock"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultBufferSeconds   = 2
	DefaultPreloadSeconds  = 1
	DefaultMaxPollSleep    = 2 * time.Millisecond
	DefaultRecognitionWait = 30 * time.Second
	DefaultQueueSize       = 4
	DefaultMinSimilarity   = 0.85
	DefaultFeedPath        = "/events"
	DefaultFeedBuffer      = 32
)

// Load reads the YAML configuration file at path, applies defaults and
// returns the validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = "text"
	}

	if cfg.Capture.Source == "" {
		cfg.Capture.Source = "portaudio"
	}
	if cfg.Capture.BufferSeconds == 0 {
		cfg.Capture.BufferSeconds = DefaultBufferSeconds
	}
	if cfg.Capture.PreloadSeconds == 0 {
		cfg.Capture.PreloadSeconds = DefaultPreloadSeconds
	}
	if cfg.Capture.MaxPollSleep == 0 {
		cfg.Capture.MaxPollSleep = DefaultMaxPollSleep
	}

	if cfg.Segmenter.Threshold == 0 {
		cfg.Segmenter.Threshold = segment.DefaultThreshold
	}
	if cfg.Segmenter.SilencePolicy == "" {
		cfg.Segmenter.SilencePolicy = segment.PolicyWallClock
	}
	if cfg.Segmenter.SilenceDuration == 0 && cfg.Segmenter.SilenceSamples == 0 {
		cfg.Segmenter.SilenceDuration = segment.DefaultSilenceDuration
	}

	if cfg.Recognition.Timeout == 0 {
		cfg.Recognition.Timeout = DefaultRecognitionWait
	}
	if cfg.Recognition.QueueSize == 0 {
		cfg.Recognition.QueueSize = DefaultQueueSize
	}

	if cfg.Hotwords.MinSimilarity == 0 {
		cfg.Hotwords.MinSimilarity = DefaultMinSimilarity
	}

	if cfg.Feed.Path == "" {
		cfg.Feed.Path = DefaultFeedPath
	}
	if cfg.Feed.Buffer == 0 {
		cfg.Feed.Buffer = DefaultFeedBuffer
	}
}

// Validate checks that cfg contains a coherent set of values and returns a
// joined error listing every failure.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if f := cfg.Server.LogFormat; f != "" && f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", f))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Capture
	validateProviderName("capture", cfg.Capture.Source)
	if c := cfg.Capture.Channels; c != 0 && c != 1 && c != 2 {
		errs = append(errs, fmt.Errorf("capture.channels %d is unsupported; valid values: 1, 2", c))
	}
	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must not be negative", cfg.Capture.SampleRate))
	}
	if cfg.Capture.BufferSeconds < 1 {
		errs = append(errs, fmt.Errorf("capture.buffer_seconds %d must be at least 1", cfg.Capture.BufferSeconds))
	}
	if cfg.Capture.PreloadSeconds > cfg.Capture.BufferSeconds {
		errs = append(errs, fmt.Errorf("capture.preload_seconds %d exceeds buffer_seconds %d",
			cfg.Capture.PreloadSeconds, cfg.Capture.BufferSeconds))
	}

	// Segmenter: check against a nominal 16 kHz mono stream; the real rate
	// only scales the sample counts.
	seg := cfg.Segmenter.Segment(16000, 1)
	if err := seg.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("segmenter: %w", err))
	}
	if cfg.Segmenter.MaxUtterance < 0 {
		errs = append(errs, errors.New("segmenter.max_utterance must not be negative"))
	}

	// Recognition
	if cfg.Recognition.Timeout < 0 {
		errs = append(errs, errors.New("recognition.timeout must not be negative"))
	}
	if cfg.Recognition.AttemptTimeout < 0 {
		errs = append(errs, errors.New("recognition.attempt_timeout must not be negative"))
	}
	if cfg.Recognition.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("recognition.queue_size %d must be at least 1", cfg.Recognition.QueueSize))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("stt", fb.Name)
	}

	// Hot words
	seen := make(map[string]int, len(cfg.Hotwords.Words))
	for i, w := range cfg.Hotwords.Words {
		word := strings.TrimSpace(w.Word)
		if word == "" {
			errs = append(errs, fmt.Errorf("hotwords.words[%d].word is required", i))
			continue
		}
		key := strings.ToLower(word)
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("hotwords.words[%d] %q duplicates hotwords.words[%d]", i, word, prev))
		}
		seen[key] = i
		if w.Boost < 0 {
			errs = append(errs, fmt.Errorf("hotwords.words[%d].boost %.2f must not be negative", i, w.Boost))
		}
	}
	if s := cfg.Hotwords.MinSimilarity; s < 0 || s > 1 {
		errs = append(errs, fmt.Errorf("hotwords.min_similarity %.2f is out of range [0, 1]", s))
	}

	// Feed
	if cfg.Feed.Enabled && !strings.HasPrefix(cfg.Feed.Path, "/") {
		errs = append(errs, fmt.Errorf("feed.path %q must start with /", cfg.Feed.Path))
	}
	if cfg.Feed.Enabled && cfg.Server.ListenAddr == "" {
		slog.Warn("feed.enabled is set but server.listen_addr is empty; the feed will not be served")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not a
// built-in of the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
