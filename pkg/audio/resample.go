package audio

import (
	"fmt"
)

// Converter is a streaming linear-interpolation rate converter. It pulls raw
// interleaved samples from a [Signal] at the source rate and yields
// interleaved int16 samples at the target rate, lazily, one per call to Next.
//
// Each output frame is interpolated per channel between the two adjacent
// source frames that bracket its fractional source position. When the source
// and target rates are equal the converter is a passthrough that only changes
// the sample representation.
//
// A Converter is not safe for concurrent use.
type Converter struct {
	src      Signal
	channels int
	identity bool

	// step is the number of source frames advanced per output frame.
	step float64
	pos  float64

	prev, next []float64
	frame      []int16
	emitted    int

	primed bool
	done   bool
}

// NewConverter returns a Converter reading channels-interleaved samples from
// src at fromHz and producing them at toHz.
func NewConverter(src Signal, fromHz, toHz, channels int) (*Converter, error) {
	if fromHz <= 0 || toHz <= 0 {
		return nil, fmt.Errorf("%w: from %d to %d", ErrInvalidRate, fromHz, toHz)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: converter needs at least one channel, got %d", channels)
	}
	c := &Converter{
		src:      src,
		channels: channels,
		identity: fromHz == toHz,
		step:     float64(fromHz) / float64(toHz),
	}
	if !c.identity {
		c.prev = make([]float64, channels)
		c.next = make([]float64, channels)
		c.frame = make([]int16, channels)
		c.emitted = channels
	}
	return c, nil
}

// Passthrough reports whether the converter only changes representation.
func (c *Converter) Passthrough() bool { return c.identity }

// Next returns the next converted sample. ok is false once the source is
// exhausted.
func (c *Converter) Next() (s int16, ok bool) {
	if c.identity {
		v, ok := c.src.Next()
		if !ok {
			return 0, false
		}
		return FloatToInt16(v), true
	}
	if c.emitted == c.channels {
		if !c.advance() {
			return 0, false
		}
	}
	s = c.frame[c.emitted]
	c.emitted++
	return s, true
}

// advance computes the next output frame into c.frame.
func (c *Converter) advance() bool {
	if c.done {
		return false
	}
	if !c.primed {
		if !c.readFrame(c.prev) || !c.readFrame(c.next) {
			c.done = true
			return false
		}
		c.primed = true
	}
	for c.pos >= 1 {
		c.prev, c.next = c.next, c.prev
		if !c.readFrame(c.next) {
			c.done = true
			return false
		}
		c.pos--
	}
	for ch := range c.channels {
		a := c.prev[ch]
		c.frame[ch] = float64ToInt16(a + (c.next[ch]-a)*c.pos)
	}
	c.emitted = 0
	c.pos += c.step
	return true
}

// readFrame fills dst with one interleaved source frame. A partial frame at
// the end of the source counts as exhaustion.
func (c *Converter) readFrame(dst []float64) bool {
	for ch := range dst {
		v, ok := c.src.Next()
		if !ok {
			return false
		}
		dst[ch] = float64(v)
	}
	return true
}

// Resample converts a whole buffer of raw interleaved samples from fromHz to
// toHz. It drives the same [Converter] used for live streams.
func Resample(samples []float32, fromHz, toHz, channels int) ([]int16, error) {
	c, err := NewConverter(NewSliceSignal(samples), fromHz, toHz, channels)
	if err != nil {
		return nil, err
	}
	estimate := int(float64(len(samples))/c.step) + channels
	out := make([]int16, 0, estimate)
	for {
		s, ok := c.Next()
		if !ok {
			return out, nil
		}
		out = append(out, s)
	}
}
