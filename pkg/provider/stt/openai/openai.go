// Package openai provides a recognizer backed by the OpenAI audio
// transcription API (POST /audio/transcriptions). It works with the hosted
// whisper-1 and gpt-4o-transcribe models and with OpenAI-compatible servers
// reached through WithBaseURL.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

const (
	defaultModel      = "whisper-1"
	defaultSampleRate = 16000
)

var (
	_ stt.Recognizer = (*Recognizer)(nil)
	_ stt.Namer      = (*Recognizer)(nil)
)

// config holds optional configuration for the recognizer.
type config struct {
	baseURL    string
	language   string
	sampleRate int
	timeout    time.Duration
	maxRetries int
	keywords   []stt.KeywordBoost
	httpClient *http.Client
}

// Option is a functional option for Recognizer.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithLanguage sets the ISO-639-1 input language hint.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithSampleRate sets the sample rate of the PCM passed to Transcribe.
// Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(c *config) { c.sampleRate = rate }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxRetries sets how often the client retries failed requests.
// Defaults to the SDK default.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithKeywords biases transcription toward the given vocabulary through the
// request prompt.
func WithKeywords(keywords []stt.KeywordBoost) Option {
	return func(c *config) { c.keywords = keywords }
}

// WithHTTPClient replaces the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// Recognizer implements [stt.Recognizer] using the OpenAI API.
type Recognizer struct {
	client     oai.Client
	model      string
	language   string
	prompt     string
	sampleRate int
}

// New constructs a Recognizer. model defaults to "whisper-1" when empty.
func New(apiKey string, model string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{sampleRate: defaultSampleRate, maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, fmt.Errorf("openai: sample rate must be positive, got %d", cfg.sampleRate)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	} else if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	var prompt string
	if words := stt.Keywords(cfg.keywords); len(words) > 0 {
		prompt = strings.Join(words, ", ")
	}

	return &Recognizer{
		client:     oai.NewClient(reqOpts...),
		model:      model,
		language:   cfg.language,
		prompt:     prompt,
		sampleRate: cfg.sampleRate,
	}, nil
}

// Name implements [stt.Namer].
func (r *Recognizer) Name() string { return "openai" }

// SampleRate implements [stt.Recognizer].
func (r *Recognizer) SampleRate() int { return r.sampleRate }

// Transcribe implements [stt.Recognizer].
func (r *Recognizer) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	if len(samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}

	wav := audio.EncodeWAV(samples, r.sampleRate, 1)
	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model:          oai.AudioModel(r.model),
		ResponseFormat: oai.AudioResponseFormatJSON,
	}
	if r.language != "" {
		params.Language = oai.String(r.language)
	}
	if r.prompt != "" {
		params.Prompt = oai.String(r.prompt)
	}

	resp, err := r.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai: transcription: %w", err)
	}

	return stt.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: r.language,
		Duration: stt.SamplesDuration(len(samples), r.sampleRate),
	}, nil
}
