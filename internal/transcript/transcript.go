// Package transcript corrects recognizer output against a configured list of
// hot words.
//
// Recognizers regularly mishear proper nouns and jargon ("elder nacks" for
// "Eldrinax"). The [Corrector] scans each transcript for word windows that
// sound like a hot word and substitutes the canonical spelling. Matching is
// phonetic, in-process and has no network dependency; see the phonetic
// subpackage.
package transcript

// Correction records one substitution applied to a transcript.
type Correction struct {
	// Original is the text as produced by the recognizer, without
	// surrounding punctuation.
	Original string `json:"original"`

	// Corrected is the hot word that replaced Original.
	Corrected string `json:"corrected"`

	// Confidence is the match score in [0, 1].
	Confidence float64 `json:"confidence"`
}
