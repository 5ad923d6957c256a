// Package phonetic matches misheard phrases against a hot-word vocabulary
// using Double Metaphone encoding and Jaro-Winkler similarity.
//
// Matching has two stages:
//
//  1. Phonetic candidates: a vocabulary entry is a candidate when any Double
//     Metaphone code of the phrase overlaps any code of the entry. The best
//     candidate wins if its Jaro-Winkler score reaches the phonetic
//     threshold (default 0.70).
//
//  2. Fuzzy fallback: without a phonetic candidate, the entry with the best
//     pure Jaro-Winkler score wins if it reaches the fuzzy threshold
//     (default 0.85).
//
// Phrases are scored on the full strings and on the space-stripped strings,
// so "elder nacks" can reach "Eldrinax" and "tower of wispers" can reach
// "Tower of Whispers".
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// defaultMinRunes is the shortest phrase that may be corrected to a
	// different spelling. Shorter phrases only match case-insensitively.
	defaultMinRunes = 4
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matched entry. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no phonetic
// candidate exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithMinRunes sets the shortest phrase eligible for a fuzzy correction.
// Default: 4.
func WithMinRunes(n int) Option {
	return func(m *Matcher) {
		m.minRunes = n
	}
}

// Matcher scores phrases against a [Vocabulary]. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	minRunes          int
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minRunes:          defaultMinRunes,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type entry struct {
	word   string
	lower  string
	tokens []string
	joined string
	codes  map[string]struct{}
}

// Vocabulary is a hot-word list with phonetic codes computed once. It is
// immutable and safe for concurrent use.
type Vocabulary struct {
	entries  []entry
	maxWords int
}

// NewVocabulary prepares words for matching. Blank entries are skipped.
func NewVocabulary(words []string) *Vocabulary {
	v := &Vocabulary{entries: make([]entry, 0, len(words))}
	for _, w := range words {
		lower := strings.ToLower(strings.TrimSpace(w))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		v.entries = append(v.entries, entry{
			word:   strings.TrimSpace(w),
			lower:  strings.Join(tokens, " "),
			tokens: tokens,
			joined: strings.Join(tokens, ""),
			codes:  codesForTokens(tokens),
		})
		v.maxWords = max(v.maxWords, len(tokens))
	}
	return v
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int { return len(v.entries) }

// MaxWords returns the word count of the longest entry, or 0 when empty.
func (v *Vocabulary) MaxWords() int { return v.maxWords }

// Match finds the vocabulary entry most similar to phrase. When matched is
// false, corrected equals phrase and confidence is 0.
func (m *Matcher) Match(phrase string, v *Vocabulary) (corrected string, confidence float64, matched bool) {
	if v == nil || len(v.entries) == 0 {
		return phrase, 0, false
	}
	tokens := strings.Fields(strings.ToLower(phrase))
	if len(tokens) == 0 {
		return phrase, 0, false
	}
	lower := strings.Join(tokens, " ")

	for _, e := range v.entries {
		if e.lower == lower {
			return e.word, 1, true
		}
	}
	if utf8.RuneCountInString(strings.Join(tokens, "")) < m.minRunes {
		return phrase, 0, false
	}

	inputCodes := codesForTokens(tokens)
	var (
		best         *entry
		bestScore    float64
		bestPhonetic bool
	)
	for i := range v.entries {
		e := &v.entries[i]
		score := bestJWScore(tokens, e, lower)
		if codesOverlap(inputCodes, e.codes) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = e, score, true
			}
			continue
		}
		if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = e, score
		}
	}
	if best == nil {
		return phrase, 0, false
	}
	return best.word, bestScore, true
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens, excluding empty codes.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the higher Jaro-Winkler similarity of the full strings and
// of the space-stripped strings.
func bestJWScore(tokens []string, e *entry, lower string) float64 {
	score := matchr.JaroWinkler(lower, e.lower, false)
	if len(tokens) > 1 || len(e.tokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(tokens, ""), e.joined, false); s > score {
			score = s
		}
	}
	return score
}
