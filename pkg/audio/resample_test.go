package audio_test

import (
	"testing"

	"github.com/MrWong99/voxgate/pkg/audio"
)

func TestConverter_IdentityWhenRatesMatch(t *testing.T) {
	t.Parallel()
	in := []float32{0, 0.5, -0.5, 1, -1, 0.25, 0.00001}
	want := []int16{0, 16384, -16384, 32767, -32768, 8192, 0}

	c, err := audio.NewConverter(audio.NewSliceSignal(in), 16000, 16000, 1)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	if !c.Passthrough() {
		t.Fatal("Passthrough = false for equal rates")
	}
	for i, w := range want {
		s, ok := c.Next()
		if !ok {
			t.Fatalf("exhausted after %d samples", i)
		}
		if s != w {
			t.Errorf("sample %d: got %d, want %d", i, s, w)
		}
	}
	if _, ok := c.Next(); ok {
		t.Error("Next returned ok after source exhausted")
	}
}

func TestConverter_IdentityIsChannelAgnostic(t *testing.T) {
	t.Parallel()
	in := []float32{0.1, 0.2, 0.3}
	got, err := audio.Resample(in, 44100, 44100, 2)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (odd trailing sample must pass through)", len(got))
	}
}

func TestConverter_Downsample(t *testing.T) {
	t.Parallel()
	// 32 kHz → 16 kHz keeps every second frame.
	in := make([]float32, 10)
	for i := range in {
		in[i] = float32(i) / 100
	}
	got, err := audio.Resample(in, 32000, 16000, 1)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	want := []int16{0, 655, 1311, 1966, 2621}
	if len(got) != len(want) {
		t.Fatalf("len = %d (%v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if diff := int(got[i]) - int(want[i]); diff < -1 || diff > 1 {
			t.Errorf("sample %d: got %d, want %d±1", i, got[i], want[i])
		}
	}
}

func TestConverter_UpsampleInterpolates(t *testing.T) {
	t.Parallel()
	// 8 kHz → 16 kHz inserts midpoints between adjacent frames.
	in := []float32{0, 0.5, 1}
	got, err := audio.Resample(in, 8000, 16000, 1)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	want := []int16{0, 8192, 16384, 24576}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestConverter_StereoChannelsIndependent(t *testing.T) {
	t.Parallel()
	// Left ramps up, right stays at -0.5.
	in := []float32{0, -0.5, 0.5, -0.5, 1, -0.5}
	got, err := audio.Resample(in, 8000, 16000, 2)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(got)%2 != 0 {
		t.Fatalf("odd output length %d for stereo", len(got))
	}
	for i := 1; i < len(got); i += 2 {
		if got[i] != -16384 {
			t.Errorf("right sample %d = %d, want -16384", i/2, got[i])
		}
	}
	if got[2] != 8192 {
		t.Errorf("left midpoint = %d, want 8192", got[2])
	}
}

func TestConverter_OutputLengthTracksRatio(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		from, to int
	}{
		{"48k_to_16k", 48000, 16000},
		{"44k1_to_16k", 44100, 16000},
		{"16k_to_48k", 16000, 48000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := make([]float32, tt.from) // one second
			got, err := audio.Resample(in, tt.from, tt.to, 1)
			if err != nil {
				t.Fatalf("Resample: %v", err)
			}
			if d := len(got) - tt.to; d < -tt.to/100 || d > 1 {
				t.Errorf("len = %d, want ≈%d", len(got), tt.to)
			}
		})
	}
}

func TestNewConverter_InvalidArgs(t *testing.T) {
	t.Parallel()
	src := audio.NewSliceSignal(nil)
	if _, err := audio.NewConverter(src, 0, 16000, 1); err == nil {
		t.Error("zero source rate accepted")
	}
	if _, err := audio.NewConverter(src, 16000, -1, 1); err == nil {
		t.Error("negative target rate accepted")
	}
	if _, err := audio.NewConverter(src, 16000, 8000, 0); err == nil {
		t.Error("zero channels accepted")
	}
}
