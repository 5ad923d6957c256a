package config_test

import (
	"testing"
	"time"

	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/internal/segment"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}

func TestSegmenterConfig_Segment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		in       config.SegmenterConfig
		rate, ch int
		want     segment.Config
	}{
		{
			name: "samples_from_duration",
			in:   config.SegmenterConfig{Threshold: 1500, SilencePolicy: segment.PolicySamples, SilenceDuration: 5 * time.Second},
			rate: 16000, ch: 1,
			want: segment.Config{Threshold: 1500, Policy: segment.PolicySamples, SilenceDuration: 5 * time.Second, SilenceSamples: 80000},
		},
		{
			name: "stereo_max_utterance",
			in:   config.SegmenterConfig{Threshold: 800, SilencePolicy: segment.PolicyWallClock, SilenceDuration: time.Second, MaxUtterance: 10 * time.Second},
			rate: 48000, ch: 2,
			want: segment.Config{Threshold: 800, Policy: segment.PolicyWallClock, SilenceDuration: time.Second, SilenceSamples: 96000, MaxSamples: 960000},
		},
		{
			name: "explicit_samples_kept",
			in:   config.SegmenterConfig{Threshold: 10, SilencePolicy: segment.PolicySamples, SilenceSamples: 42},
			rate: 16000, ch: 1,
			want: segment.Config{Threshold: 10, Policy: segment.PolicySamples, SilenceSamples: 42},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.in.Segment(tt.rate, tt.ch); got != tt.want {
				t.Errorf("Segment = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHotwordsConfig_Boosts(t *testing.T) {
	t.Parallel()
	if got := (config.HotwordsConfig{}).Boosts(); got != nil {
		t.Errorf("empty Boosts = %v, want nil", got)
	}
	h := config.HotwordsConfig{Words: []config.Hotword{{Word: "Prometheus", Boost: 1.5}}}
	got := h.Boosts()
	if len(got) != 1 || got[0].Keyword != "Prometheus" || got[0].Boost != 1.5 {
		t.Errorf("Boosts = %+v", got)
	}
}

func TestDefault_IsValidButNeedsRecognizer(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if err := config.Validate(cfg); err == nil {
		t.Fatal("default config without a recognizer validated")
	}
	cfg.Providers.STT.Name = "mock"
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
