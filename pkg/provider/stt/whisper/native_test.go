package whisper_test

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/voxgate/pkg/provider/stt"
	"github.com/MrWong99/voxgate/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("")
	if err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNative_TranscribeTone(t *testing.T) {
	modelPath := testModelPath(t)
	n, err := whisper.NewNative(modelPath,
		whisper.WithNativeLanguage("en"),
		whisper.WithNativeThreads(2),
		whisper.WithNativeKeywords([]stt.KeywordBoost{{Keyword: "voxgate", Boost: 2}}),
	)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	if n.SampleRate() != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", n.SampleRate())
	}

	// One second of a 440 Hz tone; whisper should answer without error even
	// if it hears no words.
	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	tr, err := n.Transcribe(ctx, samples)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", tr.Duration)
	}
}

func TestNative_CancelledContext(t *testing.T) {
	modelPath := testModelPath(t)
	n, err := whisper.NewNative(modelPath)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := n.Transcribe(ctx, []int16{1, 2, 3}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
