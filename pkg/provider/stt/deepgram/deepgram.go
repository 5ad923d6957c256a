// Package deepgram provides a Deepgram-backed recognizer using the Deepgram
// pre-recorded REST API. Each utterance is uploaded as a WAV body to
// POST /v1/listen; keyword boosts are forwarded as weighted keywords.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

const (
	defaultBaseURL    = "https://api.deepgram.com"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second
)

var (
	_ stt.Recognizer = (*Recognizer)(nil)
	_ stt.Namer      = (*Recognizer)(nil)
)

// Option is a functional option for configuring the Deepgram Recognizer.
type Option func(*Recognizer)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(r *Recognizer) { r.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(r *Recognizer) { r.language = language }
}

// WithSampleRate sets the sample rate of the PCM passed to Transcribe.
func WithSampleRate(rate int) Option {
	return func(r *Recognizer) { r.sampleRate = rate }
}

// WithKeywords sets vocabulary boosts sent with every request.
func WithKeywords(keywords []stt.KeywordBoost) Option {
	return func(r *Recognizer) { r.keywords = keywords }
}

// WithBaseURL points the recognizer at a different API host (for proxies
// and tests).
func WithBaseURL(base string) Option {
	return func(r *Recognizer) { r.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Recognizer) { r.httpClient = c }
}

// Recognizer implements [stt.Recognizer] backed by the Deepgram REST API.
type Recognizer struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	sampleRate int
	keywords   []stt.KeywordBoost
	httpClient *http.Client
}

// New creates a new Deepgram Recognizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	r := &Recognizer{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(r)
	}
	if r.sampleRate <= 0 {
		return nil, fmt.Errorf("deepgram: sample rate must be positive, got %d", r.sampleRate)
	}
	return r, nil
}

// Name implements [stt.Namer].
func (r *Recognizer) Name() string { return "deepgram" }

// SampleRate implements [stt.Recognizer].
func (r *Recognizer) SampleRate() int { return r.sampleRate }

// Transcribe implements [stt.Recognizer].
func (r *Recognizer) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	if len(samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	endpoint, err := r.buildURL()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	body := bytes.NewReader(audio.EncodeWAV(samples, r.sampleRate, 1))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+r.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	tr, err := parseResponse(data)
	if err != nil {
		return stt.Transcript{}, err
	}
	if tr.Duration == 0 {
		tr.Duration = stt.SamplesDuration(len(samples), r.sampleRate)
	}
	return tr, nil
}

// buildURL constructs the pre-recorded endpoint URL with query parameters.
func (r *Recognizer) buildURL() (string, error) {
	u, err := url.Parse(r.baseURL + "/v1/listen")
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", r.model)
	q.Set("language", r.language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")

	for _, kw := range r.keywords {
		if kw.Keyword == "" {
			continue
		}
		// Deepgram keyword format: word:boost (e.g., "Eldrinax:5")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// listenResponse is the JSON structure returned by the pre-recorded endpoint.
type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// parseResponse converts a pre-recorded response into a Transcript. A
// response without channels or alternatives is an empty transcript.
func parseResponse(data []byte) (stt.Transcript, error) {
	var resp listenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}

	tr := stt.Transcript{
		Duration: time.Duration(resp.Metadata.Duration * float64(time.Second)),
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return tr, nil
	}

	ch := resp.Results.Channels[0]
	alt := ch.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}

	tr.Text = alt.Transcript
	tr.Confidence = alt.Confidence
	tr.Language = ch.DetectedLanguage
	tr.Words = words
	return tr, nil
}
