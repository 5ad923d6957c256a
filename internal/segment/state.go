// Package segment detects utterance boundaries in a stream of converted
// samples using an amplitude threshold.
//
// The detector is split in two. [Step] is a pure transition function over an
// explicit [State] value: given the current state, the tunables and one
// sample, it returns the next state and the [Action] the caller must apply.
// [Segmenter] owns the utterance buffer and applies those actions.
//
// A sample is voiced when its absolute value exceeds the threshold. The first
// voiced sample after silence opens an utterance; while an utterance is open
// every sample is kept. The utterance ends when silence has lasted longer
// than the configured limit, measured either by wall-clock time or by a count
// of consecutive quiet samples.
package segment

import (
	"errors"
	"fmt"
	"time"
)

// Policy selects how silence is measured while an utterance is open.
type Policy string

const (
	// PolicyWallClock ends an utterance when the wall-clock time since the
	// first quiet sample of the current silent run exceeds SilenceDuration.
	PolicyWallClock Policy = "wallclock"

	// PolicySamples ends an utterance when the number of consecutive quiet
	// samples exceeds SilenceSamples.
	PolicySamples Policy = "samples"
)

// IsValid reports whether p is a known policy.
func (p Policy) IsValid() bool {
	return p == PolicyWallClock || p == PolicySamples
}

const (
	DefaultThreshold       = 1500
	DefaultSilenceDuration = 5 * time.Second
)

// Config holds the segmentation tunables.
type Config struct {
	// Threshold is the amplitude a sample must exceed, in absolute value, to
	// count as voiced.
	Threshold int

	// Policy selects the silence measure.
	Policy Policy

	// SilenceDuration is the wall-clock silence limit for PolicyWallClock and
	// the source of SilenceSamples when that is left at zero.
	SilenceDuration time.Duration

	// SilenceSamples is the quiet-run limit for PolicySamples. Samples are
	// counted interleaved, so a stereo stream counts two per frame.
	SilenceSamples int

	// MaxSamples forces the utterance to end once it holds this many samples.
	// Zero disables the limit.
	MaxSamples int
}

// DefaultConfig returns a threshold of 1500 with five seconds of wall-clock
// silence.
func DefaultConfig() Config {
	return Config{
		Threshold:       DefaultThreshold,
		Policy:          PolicyWallClock,
		SilenceDuration: DefaultSilenceDuration,
	}
}

// Resolve fills SilenceSamples from SilenceDuration for a stream of the given
// rate and channel count when it is unset.
func (c Config) Resolve(rate, channels int) Config {
	if c.SilenceSamples == 0 && c.SilenceDuration > 0 {
		perSecond := int64(rate) * int64(channels)
		c.SilenceSamples = int(perSecond * int64(c.SilenceDuration) / int64(time.Second))
	}
	return c
}

// Validate checks the tunables for consistency.
func (c Config) Validate() error {
	var errs []error
	if c.Threshold < 0 || c.Threshold > 32767 {
		errs = append(errs, fmt.Errorf("segment: threshold %d outside [0, 32767]", c.Threshold))
	}
	switch c.Policy {
	case PolicyWallClock:
		if c.SilenceDuration <= 0 {
			errs = append(errs, errors.New("segment: wallclock policy needs a positive silence duration"))
		}
	case PolicySamples:
		if c.SilenceSamples <= 0 {
			errs = append(errs, errors.New("segment: samples policy needs a positive silence sample count"))
		}
	default:
		errs = append(errs, fmt.Errorf("segment: unknown silence policy %q", c.Policy))
	}
	if c.MaxSamples < 0 || c.MaxSamples == 1 {
		errs = append(errs, fmt.Errorf("segment: max samples must be 0 (unlimited) or at least 2, got %d", c.MaxSamples))
	}
	return errors.Join(errs...)
}

// Voiced reports whether s exceeds the threshold in absolute value.
func (c Config) Voiced(s int16) bool {
	v := int32(s)
	if v < 0 {
		v = -v
	}
	return v > int32(c.Threshold)
}

// State is the complete segmentation state between two samples. The zero
// value is the initial Silent state.
type State struct {
	// Talking is true while an utterance is open.
	Talking bool

	// HadVoiced records whether the open utterance holds a voiced sample.
	HadVoiced bool

	// SilenceStart is when the current quiet run began under
	// PolicyWallClock. Zero while no quiet run is being timed.
	SilenceStart time.Time

	// QuietSamples is the length of the current quiet run under
	// PolicySamples.
	QuietSamples int

	// Length is the number of samples in the open utterance.
	Length int
}

// Action tells the owner of the utterance buffer what to do with a sample.
type Action uint8

const (
	// ActionDiscard drops the sample; no utterance is open.
	ActionDiscard Action = iota

	// ActionStart opens a new utterance holding the sample.
	ActionStart

	// ActionAppend adds the sample to the open utterance.
	ActionAppend

	// ActionEnd adds the sample and closes the utterance because silence
	// exceeded the limit.
	ActionEnd

	// ActionForceEnd adds the sample and closes the utterance because it
	// reached MaxSamples.
	ActionForceEnd
)

func (a Action) String() string {
	switch a {
	case ActionDiscard:
		return "discard"
	case ActionStart:
		return "start"
	case ActionAppend:
		return "append"
	case ActionEnd:
		return "end"
	case ActionForceEnd:
		return "force_end"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// Ends reports whether the action closes the utterance.
func (a Action) Ends() bool { return a == ActionEnd || a == ActionForceEnd }

// Step advances st by one sample observed at now. It has no side effects.
func Step(st State, cfg Config, s int16, now time.Time) (State, Action) {
	voiced := cfg.Voiced(s)

	if !st.Talking {
		if !voiced {
			return st, ActionDiscard
		}
		return State{Talking: true, HadVoiced: true, Length: 1}, ActionStart
	}

	st.Length++
	if voiced {
		st.HadVoiced = true
		st.SilenceStart = time.Time{}
		st.QuietSamples = 0
	} else {
		switch cfg.Policy {
		case PolicySamples:
			st.QuietSamples++
			if st.QuietSamples > cfg.SilenceSamples {
				return State{}, ActionEnd
			}
		default:
			if st.SilenceStart.IsZero() {
				st.SilenceStart = now
			}
			if now.Sub(st.SilenceStart) > cfg.SilenceDuration {
				return State{}, ActionEnd
			}
		}
	}

	if cfg.MaxSamples > 0 && st.Length >= cfg.MaxSamples {
		return State{}, ActionForceEnd
	}
	return st, ActionAppend
}
