package segment

import (
	"time"
)

// Clock returns the current time. Tests substitute a synthetic clock to
// drive PolicyWallClock deterministically.
type Clock func() time.Time

// Boundary is what a single Push observed.
type Boundary uint8

const (
	// BoundaryNone means no utterance started or ended.
	BoundaryNone Boundary = iota

	// BoundaryStart means the sample opened a new utterance.
	BoundaryStart

	// BoundaryEnd means the utterance closed after silence.
	BoundaryEnd

	// BoundaryForced means the utterance closed at the length limit.
	BoundaryForced

	// BoundaryDiscarded means the utterance closed but held no voiced sample
	// and was dropped.
	BoundaryDiscarded
)

// Segmenter applies [Step] to a stream of samples and accumulates the open
// utterance. The buffer's capacity is reused across utterances.
//
// A Segmenter is confined to one goroutine.
type Segmenter struct {
	cfg   Config
	st    State
	buf   []int16
	clock Clock
}

// Option configures a [Segmenter].
type Option func(*Segmenter)

// WithClock replaces time.Now as the wall-clock source.
func WithClock(c Clock) Option {
	return func(s *Segmenter) { s.clock = c }
}

// WithCapacity preallocates room for n samples in the utterance buffer.
func WithCapacity(n int) Option {
	return func(s *Segmenter) {
		if n > 0 {
			s.buf = make([]int16, 0, n)
		}
	}
}

// New returns a Segmenter in the Silent state. cfg must already be resolved
// and valid.
func New(cfg Config, opts ...Option) *Segmenter {
	s := &Segmenter{cfg: cfg, clock: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Push feeds one sample. When the returned boundary is BoundaryEnd or
// BoundaryForced, utterance holds the finished utterance; it aliases the
// internal buffer and is only valid until the next call to Push or Drain.
func (s *Segmenter) Push(sample int16) (b Boundary, utterance []int16) {
	prev := s.st
	var now time.Time
	if s.cfg.Policy != PolicySamples && prev.Talking {
		now = s.clock()
	}

	next, action := Step(prev, s.cfg, sample, now)
	s.st = next

	switch action {
	case ActionDiscard:
		return BoundaryNone, nil
	case ActionStart:
		s.buf = append(s.buf[:0], sample)
		return BoundaryStart, nil
	case ActionAppend:
		s.buf = append(s.buf, sample)
		return BoundaryNone, nil
	}

	s.buf = append(s.buf, sample)
	utterance = s.buf
	s.buf = s.buf[:0]
	if !prev.HadVoiced || len(utterance) == 0 {
		return BoundaryDiscarded, nil
	}
	if action == ActionForceEnd {
		return BoundaryForced, utterance
	}
	return BoundaryEnd, utterance
}

// Drain closes the open utterance, if any, and returns it when it holds a
// voiced sample. Used at end of stream.
func (s *Segmenter) Drain() []int16 {
	prev := s.st
	s.st = State{}
	utterance := s.buf
	s.buf = s.buf[:0]
	if !prev.Talking || !prev.HadVoiced || len(utterance) == 0 {
		return nil
	}
	return utterance
}

// State returns the current segmentation state.
func (s *Segmenter) State() State { return s.st }

// Config returns the active tunables.
func (s *Segmenter) Config() Config { return s.cfg }

// SetConfig replaces the tunables. The open utterance, if any, continues
// under the new limits.
func (s *Segmenter) SetConfig(cfg Config) { s.cfg = cfg }

// Buffered returns the number of samples in the open utterance.
func (s *Segmenter) Buffered() int { return len(s.buf) }
