// Package whisper provides whisper.cpp-backed speech recognizers.
//
// Two flavours are available. [Server] talks to a running whisper-server
// binary over its REST API (POST /inference) and needs no CGO. [Native] links
// whisper.cpp directly through its Go bindings and loads the model in-process.
//
// Both are batch recognizers: each Transcribe call uploads or processes one
// complete utterance.
//
// Usage:
//
//	r, err := whisper.NewServer("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	    whisper.WithKeywords(hotwords),
//	)
//	tr, err := r.Transcribe(ctx, samples)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second
)

var (
	_ stt.Recognizer = (*Server)(nil)
	_ stt.Namer      = (*Server)(nil)
)

// Option is a functional option for configuring a Server recognizer.
type Option func(*Server)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with; this is the default.
func WithModel(model string) Option {
	return func(s *Server) { s.model = model }
}

// WithLanguage sets the language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Server) { s.language = lang }
}

// WithSampleRate sets the sample rate of the PCM passed to Transcribe.
// whisper-server resamples internally, but 16000 avoids that work. Defaults
// to 16000.
func WithSampleRate(rate int) Option {
	return func(s *Server) { s.sampleRate = rate }
}

// WithKeywords biases decoding toward the given vocabulary through the
// server's prompt field.
func WithKeywords(keywords []stt.KeywordBoost) Option {
	return func(s *Server) { s.prompt = keywordPrompt(keywords) }
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.httpClient = c }
}

// Server implements [stt.Recognizer] backed by a whisper.cpp HTTP server.
type Server struct {
	serverURL  string
	model      string
	language   string
	prompt     string
	sampleRate int
	httpClient *http.Client
}

// NewServer creates a recognizer that posts utterances to the whisper.cpp
// HTTP server at serverURL (e.g., "http://localhost:8080").
func NewServer(serverURL string, opts ...Option) (*Server, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	s := &Server{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	if s.sampleRate <= 0 {
		return nil, fmt.Errorf("whisper: sample rate must be positive, got %d", s.sampleRate)
	}
	return s, nil
}

// Name implements [stt.Namer].
func (s *Server) Name() string { return "whisper" }

// SampleRate implements [stt.Recognizer].
func (s *Server) SampleRate() int { return s.sampleRate }

// Transcribe encodes samples as a WAV file and POSTs it to the /inference
// endpoint as multipart/form-data.
func (s *Server) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	if len(samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(samples, s.sampleRate, 1)); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := []struct{ key, value string }{
		{"response_format", "json"},
		{"language", s.language},
		{"model", s.model},
		{"prompt", s.prompt},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.key, f.value); err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: write %s field: %w", f.key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/inference", &body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	if result.Error != "" {
		return stt.Transcript{}, fmt.Errorf("whisper: server error: %s", result.Error)
	}

	return stt.Transcript{
		Text:     strings.TrimSpace(result.Text),
		Language: s.language,
		Duration: stt.SamplesDuration(len(samples), s.sampleRate),
	}, nil
}
