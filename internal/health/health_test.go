package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func ok(context.Context) error { return nil }

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := New("v1.2.3")
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := decode(t, rec)
	if body.Status != "ok" || body.Version != "v1.2.3" || body.Uptime == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no_checkers",
			wantStatus: http.StatusOK,
			wantChecks: nil,
		},
		{
			name: "all_pass",
			checkers: []Checker{
				{Name: "capture", Check: ok},
				{Name: "recognizer", Check: ok},
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"capture": "ok", "recognizer": "ok"},
		},
		{
			name: "one_fails",
			checkers: []Checker{
				{Name: "capture", Check: ok},
				{Name: "recognizer", Check: func(context.Context) error { return errors.New("all breakers open") }},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"capture": "ok", "recognizer": "fail: all breakers open"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := New("test", tt.checkers...)
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode(t, rec)
			if len(body.Checks) != len(tt.wantChecks) {
				t.Fatalf("checks = %v, want %v", body.Checks, tt.wantChecks)
			}
			for k, v := range tt.wantChecks {
				if body.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, body.Checks[k], v)
				}
			}
		})
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	block := func(ctx context.Context) error {
		started <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := New("test", Checker{Name: "a", Check: block}, Checker{Name: "b", Check: block})

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
		done <- rec.Code
	}()

	for range 2 {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("checkers did not run concurrently")
		}
	}
	close(release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	t.Parallel()
	h := New("test", Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestAddAndRegister(t *testing.T) {
	t.Parallel()
	h := New("test")
	mux := http.NewServeMux()
	h.Register(mux)

	h.Add(Checker{Name: "late", Check: func(context.Context) error { return errors.New("not yet") }})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "late") {
		t.Errorf("readyz = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
}
