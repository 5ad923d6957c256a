package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voxgate/internal/transcript"
)

// Kind identifies a pipeline event.
type Kind string

const (
	// KindTalking is emitted when a voiced sample opens an utterance.
	KindTalking Kind = "TALKING"

	// KindProcessing is emitted when an utterance closes and is handed to the
	// recognizer.
	KindProcessing Kind = "PROCESSING"

	// KindResult carries the recognizer's transcript and latency.
	KindResult Kind = "RESULT"

	// KindError reports a recognition failure. The utterance is discarded.
	KindError Kind = "ERROR"

	// KindDropped reports an utterance discarded because the recognition
	// queue was full.
	KindDropped Kind = "DROPPED"
)

// Event is one observable step of an utterance's life. Every event of the
// same utterance shares UtteranceID.
type Event struct {
	Kind        Kind      `json:"kind"`
	UtteranceID uuid.UUID `json:"utterance_id"`
	Time        time.Time `json:"time"`

	// Samples is the mono sample count handed to the recognizer.
	Samples      int     `json:"samples,omitempty"`
	AudioSeconds float64 `json:"audio_seconds,omitempty"`

	// Forced is set when the utterance was cut at the length limit instead
	// of ending in silence.
	Forced bool `json:"forced,omitempty"`

	Text        string                  `json:"text,omitempty"`
	Confidence  float64                 `json:"confidence,omitempty"`
	Language    string                  `json:"language,omitempty"`
	Corrections []transcript.Correction `json:"corrections,omitempty"`

	Provider       string        `json:"provider,omitempty"`
	Latency        time.Duration `json:"-"`
	LatencySeconds float64       `json:"latency_seconds,omitempty"`

	Err string `json:"error,omitempty"`
}
