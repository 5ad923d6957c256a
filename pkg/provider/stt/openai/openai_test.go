package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
	"github.com/MrWong99/voxgate/pkg/provider/stt/openai"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := openai.New("", "whisper-1"); err == nil {
		t.Error("expected error for empty apiKey")
	}
	if _, err := openai.New("k", "", openai.WithSampleRate(-1)); err == nil {
		t.Error("expected error for negative sample rate")
	}
	r, err := openai.New("k", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.SampleRate() != 16000 || stt.NameOf(r) != "openai" {
		t.Errorf("defaults: rate=%d name=%q", r.SampleRate(), stt.NameOf(r))
	}
}

func TestTranscribe_SendsMultipartRequest(t *testing.T) {
	t.Parallel()
	type received struct {
		path, auth, model, language, prompt string
		clip                                *audio.Clip
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec := received{
			path:     r.URL.Path,
			auth:     r.Header.Get("Authorization"),
			model:    r.FormValue("model"),
			language: r.FormValue("language"),
			prompt:   r.FormValue("prompt"),
		}
		f, _, err := r.FormFile("file")
		if err == nil {
			rec.clip, _ = audio.DecodeWAV(f)
			f.Close()
		}
		got <- rec
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " Hello from the API. "})
	}))
	defer srv.Close()

	r, err := openai.New("sk-test", "gpt-4o-transcribe",
		openai.WithBaseURL(srv.URL+"/v1/"),
		openai.WithLanguage("en"),
		openai.WithMaxRetries(0),
		openai.WithKeywords([]stt.KeywordBoost{{Keyword: "voxgate", Boost: 1}, {Keyword: "Deepgram", Boost: 1}}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr, err := r.Transcribe(context.Background(), []int16{100, -100, 200})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "Hello from the API." {
		t.Errorf("Text = %q", tr.Text)
	}

	rec := <-got
	if rec.path != "/v1/audio/transcriptions" {
		t.Errorf("path = %q", rec.path)
	}
	if rec.auth != "Bearer sk-test" {
		t.Errorf("auth = %q", rec.auth)
	}
	if rec.model != "gpt-4o-transcribe" || rec.language != "en" {
		t.Errorf("model=%q language=%q", rec.model, rec.language)
	}
	if !strings.Contains(rec.prompt, "voxgate") || !strings.Contains(rec.prompt, "Deepgram") {
		t.Errorf("prompt = %q", rec.prompt)
	}
	if rec.clip == nil || len(rec.clip.Samples) != 3 || rec.clip.Format.SampleRate != 16000 {
		t.Errorf("uploaded clip = %+v", rec.clip)
	}
}

func TestTranscribe_APIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	r, _ := openai.New("sk", "whisper-1", openai.WithBaseURL(srv.URL), openai.WithMaxRetries(0))
	if _, err := r.Transcribe(context.Background(), []int16{1}); err == nil {
		t.Fatal("expected error for HTTP 400")
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	t.Parallel()
	r, _ := openai.New("sk", "whisper-1")
	if _, err := r.Transcribe(context.Background(), nil); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
}
