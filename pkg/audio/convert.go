package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedChannels is returned for channel counts other than 1 or 2.
var ErrUnsupportedChannels = errors.New("audio: unsupported channel count")

// ValidateChannels reports whether channels can be downmixed to mono.
func ValidateChannels(channels int) error {
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %d (only mono and stereo are supported)", ErrUnsupportedChannels, channels)
	}
	return nil
}

// FloatToInt16 converts a normalised sample to int16 with round-to-nearest
// and saturation at the int16 bounds.
func FloatToInt16(s float32) int16 {
	return float64ToInt16(float64(s))
}

func float64ToInt16(s float64) int16 {
	v := math.Round(s * 32768)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	case math.IsNaN(v):
		return 0
	}
	return int16(v)
}

// Int16ToFloat converts an int16 sample to a normalised float32 in [-1, 1).
func Int16ToFloat(s int16) float32 {
	return float32(s) / 32768
}

// Int16sToFloats converts a whole buffer with [Int16ToFloat].
func Int16sToFloats(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = Int16ToFloat(s)
	}
	return out
}

// Downmix reduces interleaved samples to mono.
//
// Mono input is returned unchanged. Stereo input yields one sample per
// (L, R) pair computed as (L+R)/2 with truncating integer division; a trailing
// unpaired sample is passed through as-is. Any other channel count returns
// [ErrUnsupportedChannels].
func Downmix(samples []int16, channels int) ([]int16, error) {
	switch channels {
	case 1:
		return samples, nil
	case 2:
	default:
		return nil, ValidateChannels(channels)
	}

	out := make([]int16, 0, (len(samples)+1)/2)
	i := 0
	for ; i+1 < len(samples); i += 2 {
		out = append(out, int16((int32(samples[i])+int32(samples[i+1]))/2))
	}
	if i < len(samples) {
		out = append(out, samples[i])
	}
	return out, nil
}
