package transcript

import (
	"strings"
	"unicode"

	"github.com/MrWong99/voxgate/internal/transcript/phonetic"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// Option is a functional option for configuring a [Corrector].
type Option func(*options)

type options struct {
	matcherOpts []phonetic.Option
}

// WithMinSimilarity sets the Jaro-Winkler score a window needs to be
// replaced when it shares no phonetic code with a hot word.
func WithMinSimilarity(s float64) Option {
	return func(o *options) {
		o.matcherOpts = append(o.matcherOpts, phonetic.WithFuzzyThreshold(s))
	}
}

// WithMatcherOptions passes options through to the underlying
// [phonetic.Matcher].
func WithMatcherOptions(opts ...phonetic.Option) Option {
	return func(o *options) {
		o.matcherOpts = append(o.matcherOpts, opts...)
	}
}

// Corrector rewrites transcripts so hot words carry their canonical
// spelling. It is immutable and safe for concurrent use; build a new one to
// change the word list.
type Corrector struct {
	matcher *phonetic.Matcher
	vocab   *phonetic.Vocabulary
}

// New prepares a Corrector for words.
func New(words []string, opts ...Option) *Corrector {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Corrector{
		matcher: phonetic.New(o.matcherOpts...),
		vocab:   phonetic.NewVocabulary(words),
	}
}

// Len returns the number of hot words.
func (c *Corrector) Len() int { return c.vocab.Len() }

// Correct returns t with every matched window replaced by its hot word, and
// the substitutions made. Windows already spelled correctly are not
// reported. Longer windows are tried first so multi-word hot words win over
// partial single-word matches, but a window is only taken when it scores
// higher than both of its one-word-shorter sub-windows. Punctuation around a
// window is kept.
//
// Only Text is rewritten; Words keeps the recognizer's per-word output.
func (c *Corrector) Correct(t stt.Transcript) (stt.Transcript, []Correction) {
	tokens := strings.Fields(t.Text)
	maxWords := c.vocab.MaxWords()
	if len(tokens) == 0 || maxWords == 0 {
		return t, nil
	}

	out := make([]string, 0, len(tokens))
	var corrections []Correction
	for i := 0; i < len(tokens); {
		consumed := 0
		for n := min(maxWords, len(tokens)-i); n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			lead, core, trail := splitPunct(window)
			if core == "" {
				continue
			}
			word, conf, ok := c.matcher.Match(core, c.vocab)
			if !ok {
				continue
			}
			if n > 1 && (c.beats(tokens[i:i+n-1], word, conf) || c.beats(tokens[i+1:i+n], word, conf)) {
				continue
			}
			out = append(out, lead+word+trail)
			if word != core {
				corrections = append(corrections, Correction{Original: core, Corrected: word, Confidence: conf})
			}
			consumed = n
			break
		}
		if consumed == 0 {
			out = append(out, tokens[i])
			consumed = 1
		}
		i += consumed
	}

	if len(corrections) == 0 {
		return t, nil
	}
	t.Text = strings.Join(out, " ")
	return t, corrections
}

// beats reports whether the sub-window tokens match word at least as well
// as the enclosing window's score.
func (c *Corrector) beats(tokens []string, word string, score float64) bool {
	_, core, _ := splitPunct(strings.Join(tokens, " "))
	got, conf, ok := c.matcher.Match(core, c.vocab)
	return ok && got == word && conf >= score
}

// splitPunct separates leading and trailing punctuation from s.
func splitPunct(s string) (lead, core, trail string) {
	isPunct := func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }
	core = strings.TrimLeftFunc(s, isPunct)
	lead = s[:len(s)-len(core)]
	trimmed := strings.TrimRightFunc(core, isPunct)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}
