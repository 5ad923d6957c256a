package whisper

import (
	"math"
	"testing"

	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

func TestPcmToFloat32_Empty(t *testing.T) {
	out := pcmToFloat32(nil)
	if len(out) != 0 {
		t.Fatalf("expected 0 samples, got %d", len(out))
	}
}

func TestPcmToFloat32_FullScale(t *testing.T) {
	tests := []struct {
		name  string
		value int16
		want  float32
	}{
		{"max positive", 32767, 32767.0 / 32768.0},
		{"max negative", -32768, -1.0},
		{"zero", 0, 0.0},
		{"mid positive", 16384, 0.5},
		{"mid negative", -16384, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := pcmToFloat32([]int16{tt.value})
			if math.Abs(float64(out[0]-tt.want)) > 1e-6 {
				t.Errorf("sample = %f; want %f", out[0], tt.want)
			}
		})
	}
}

func TestKeywordPrompt(t *testing.T) {
	tests := []struct {
		name string
		in   []stt.KeywordBoost
		want string
	}{
		{"empty", nil, ""},
		{"blank_keywords", []stt.KeywordBoost{{Keyword: ""}}, ""},
		{"ordered_by_boost", []stt.KeywordBoost{
			{Keyword: "low", Boost: 1},
			{Keyword: "high", Boost: 3},
			{Keyword: "mid", Boost: 2},
		}, "Glossary: high, mid, low."},
		{"ties_keep_order", []stt.KeywordBoost{
			{Keyword: "a", Boost: 1},
			{Keyword: "b", Boost: 1},
		}, "Glossary: a, b."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keywordPrompt(tt.in); got != tt.want {
				t.Errorf("keywordPrompt = %q, want %q", got, tt.want)
			}
		})
	}
}
