package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	r, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := r.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "host", "api.deepgram.com", u.Host)
	assertEqual(t, "path", "/v1/listen", u.Path)
	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
}

func TestBuildURL_Keywords(t *testing.T) {
	r, err := New("key", WithModel("base"), WithLanguage("de-DE"), WithKeywords([]stt.KeywordBoost{
		{Keyword: "Eldrinax", Boost: 5},
		{Keyword: "", Boost: 1},
		{Keyword: "Kubernetes", Boost: 1.5},
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := r.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))
	kws := q["keywords"]
	if len(kws) != 2 {
		t.Fatalf("keywords = %v, want 2 entries", kws)
	}
	assertEqual(t, "keyword[0]", "Eldrinax:5", kws[0])
	assertEqual(t, "keyword[1]", "Kubernetes:1.5", kws[1])
}

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

// ---- response parsing ----

func TestParseResponse(t *testing.T) {
	body := []byte(`{
		"metadata": {"duration": 1.5},
		"results": {"channels": [{
			"detected_language": "en",
			"alternatives": [{
				"transcript": "hello there",
				"confidence": 0.93,
				"words": [
					{"word": "hello", "start": 0.1, "end": 0.4, "confidence": 0.95},
					{"word": "there", "start": 0.5, "end": 0.9, "confidence": 0.91}
				]
			}]
		}]}
	}`)
	tr, err := parseResponse(body)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	assertEqual(t, "text", "hello there", tr.Text)
	assertEqual(t, "language", "en", tr.Language)
	if tr.Confidence != 0.93 {
		t.Errorf("confidence = %v", tr.Confidence)
	}
	if tr.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v", tr.Duration)
	}
	if len(tr.Words) != 2 || tr.Words[1].Start != 500*time.Millisecond {
		t.Errorf("words = %+v", tr.Words)
	}
}

func TestParseResponse_NoAlternatives(t *testing.T) {
	tr, err := parseResponse([]byte(`{"results": {"channels": []}}`))
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if !tr.Empty() {
		t.Errorf("expected empty transcript, got %q", tr.Text)
	}
}

func TestParseResponse_InvalidJSON(t *testing.T) {
	if _, err := parseResponse([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

// ---- Transcribe ----

func TestTranscribe_RoundTrip(t *testing.T) {
	var gotAuth, gotType string
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotLen = len(b)
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"ok","confidence":1}]}]}}`))
	}))
	defer srv.Close()

	r, err := New("secret", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := r.Transcribe(context.Background(), make([]int16, 1600))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "text", "ok", tr.Text)
	assertEqual(t, "auth", "Token secret", gotAuth)
	assertEqual(t, "content-type", "audio/wav", gotType)
	if gotLen != 44+3200 {
		t.Errorf("body length = %d, want %d", gotLen, 44+3200)
	}
	if tr.Duration != 100*time.Millisecond {
		t.Errorf("duration fallback = %v, want 100ms", tr.Duration)
	}
}

func TestTranscribe_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_code":"INVALID_AUTH"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	r, _ := New("bad", WithBaseURL(srv.URL))
	if _, err := r.Transcribe(context.Background(), []int16{1}); err == nil {
		t.Fatal("expected error for HTTP 401")
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	r, _ := New("k")
	if _, err := r.Transcribe(context.Background(), nil); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
}

// ---- helpers ----

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
