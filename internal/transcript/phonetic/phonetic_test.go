package phonetic_test

import (
	"testing"

	"github.com/MrWong99/voxgate/internal/transcript/phonetic"
)

var vocab = phonetic.NewVocabulary([]string{"Eldrinax", "Grimjaw", "Tower of Whispers"})

func TestMatcher_Match(t *testing.T) {
	t.Parallel()
	m := phonetic.New()
	tests := []struct {
		phrase    string
		want      string
		wantMatch bool
		minConf   float64
	}{
		{"elder nacks", "Eldrinax", true, 0.7},
		{"tower of wispers", "Tower of Whispers", true, 0.7},
		{"ELDRINAX", "Eldrinax", true, 1},
		{"grimjaw", "Grimjaw", true, 1},
		{"  Tower   of whispers ", "Tower of Whispers", true, 1},
		{"hello", "hello", false, 0},
		{"", "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			t.Parallel()
			got, conf, ok := m.Match(tt.phrase, vocab)
			if ok != tt.wantMatch || got != tt.want {
				t.Fatalf("Match(%q) = %q, %v; want %q, %v", tt.phrase, got, ok, tt.want, tt.wantMatch)
			}
			if ok && conf < tt.minConf {
				t.Errorf("confidence = %f, want >= %f", conf, tt.minConf)
			}
			if !ok && conf != 0 {
				t.Errorf("unmatched confidence = %f, want 0", conf)
			}
		})
	}
}

func TestMatcher_Thresholds(t *testing.T) {
	t.Parallel()
	m := phonetic.New(phonetic.WithPhoneticThreshold(0.99), phonetic.WithFuzzyThreshold(0.99))
	if _, _, ok := m.Match("elder nacks", vocab); ok {
		t.Fatal("near-match accepted with 0.99 thresholds")
	}
	// Case-insensitive equality is always accepted.
	if got, _, ok := m.Match("eldrinax", vocab); !ok || got != "Eldrinax" {
		t.Fatalf("exact match = %q, %v", got, ok)
	}
}

func TestMatcher_ShortPhrasesOnlyMatchExactly(t *testing.T) {
	t.Parallel()
	v := phonetic.NewVocabulary([]string{"Loki", "Go"})
	m := phonetic.New()
	if got, _, ok := m.Match("go", v); !ok || got != "Go" {
		t.Errorf("exact short match = %q, %v", got, ok)
	}
	if _, _, ok := m.Match("lok", v); ok {
		t.Error("3-rune phrase was fuzzily corrected")
	}
	m = phonetic.New(phonetic.WithMinRunes(1))
	if _, _, ok := m.Match("lokii", v); !ok {
		t.Error("lokii did not match Loki")
	}
}

func TestVocabulary(t *testing.T) {
	t.Parallel()
	v := phonetic.NewVocabulary([]string{"  ", "Tower of Whispers", "Grimjaw", ""})
	if v.Len() != 2 {
		t.Errorf("Len = %d, want 2", v.Len())
	}
	if v.MaxWords() != 3 {
		t.Errorf("MaxWords = %d, want 3", v.MaxWords())
	}
	empty := phonetic.NewVocabulary(nil)
	if empty.MaxWords() != 0 {
		t.Errorf("empty MaxWords = %d", empty.MaxWords())
	}
	if got, _, ok := phonetic.New().Match("grimjaw", empty); ok || got != "grimjaw" {
		t.Errorf("empty vocabulary matched %q", got)
	}
}
