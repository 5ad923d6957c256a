package whisper

import (
	"strings"

	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// pcmToFloat32 converts 16-bit signed PCM samples to float32 normalised to
// the range [-1.0, 1.0).
func pcmToFloat32(pcm []int16) []float32 {
	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// keywordPrompt renders vocabulary hints as a whisper initial prompt.
// whisper has no per-word weights, so higher boosts only move a keyword
// earlier in the list.
func keywordPrompt(keywords []stt.KeywordBoost) string {
	if len(keywords) == 0 {
		return ""
	}
	sorted := make([]stt.KeywordBoost, len(keywords))
	copy(sorted, keywords)
	// Stable insertion sort by descending boost; lists are short.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Boost > sorted[j-1].Boost; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	words := stt.Keywords(sorted)
	if len(words) == 0 {
		return ""
	}
	return "Glossary: " + strings.Join(words, ", ") + "."
}
