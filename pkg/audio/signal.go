package audio

import (
	"context"
	"runtime"
	"time"
)

// Signal is a pull-based stream of raw samples. Next blocks until a sample is
// available and returns ok == false once the stream is exhausted.
type Signal interface {
	Next() (s float32, ok bool)
}

// SliceSignal replays a fixed slice of samples and is exhausted at its end.
type SliceSignal struct {
	samples []float32
	pos     int
}

// NewSliceSignal returns a [Signal] over samples. The slice is not copied.
func NewSliceSignal(samples []float32) *SliceSignal {
	return &SliceSignal{samples: samples}
}

// Next implements [Signal].
func (s *SliceSignal) Next() (float32, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	v := s.samples[s.pos]
	s.pos++
	return v, true
}

const (
	defaultSpinLimit  = 64
	defaultYieldLimit = 256
	defaultMinSleep   = 50 * time.Microsecond
	defaultMaxSleep   = 2 * time.Millisecond
)

// PollerOption configures a [Poller].
type PollerOption func(*Poller)

// WithMaxSleep caps the sleep between polls of an empty ring.
func WithMaxSleep(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.maxSleep = d
		}
	}
}

// WithSpinLimit sets how many consecutive empty polls busy-spin before the
// poller starts yielding the processor.
func WithSpinLimit(n int) PollerOption {
	return func(p *Poller) {
		if n >= 0 {
			p.spinLimit = n
		}
	}
}

// Poller adapts a [Ring] to the blocking [Signal] contract. An empty ring is
// polled with a bounded backoff: a short busy spin, then runtime.Gosched,
// then sleeps doubling up to the configured maximum.
//
// The signal is exhausted when ctx is cancelled or when the ring is closed
// and fully drained. Poller must be used from the ring's consumer goroutine.
type Poller struct {
	ctx  context.Context
	ring *Ring

	spinLimit  int
	yieldLimit int
	maxSleep   time.Duration

	idle uint64
}

// NewPoller returns a Poller reading from r until ctx is done.
func NewPoller(ctx context.Context, r *Ring, opts ...PollerOption) *Poller {
	p := &Poller{
		ctx:        ctx,
		ring:       r,
		spinLimit:  defaultSpinLimit,
		yieldLimit: defaultYieldLimit,
		maxSleep:   defaultMaxSleep,
	}
	for _, o := range opts {
		o(p)
	}
	if p.yieldLimit < p.spinLimit {
		p.yieldLimit = p.spinLimit
	}
	return p
}

// Next implements [Signal].
func (p *Poller) Next() (float32, bool) {
	sleep := min(defaultMinSleep, p.maxSleep)
	for attempt := 0; ; attempt++ {
		if s, ok := p.ring.Pop(); ok {
			return s, true
		}
		if p.ring.Closed() {
			// The producer may have pushed between Pop and Closed.
			return p.ring.Pop()
		}
		if p.ctx.Err() != nil {
			return 0, false
		}
		p.idle++
		switch {
		case attempt < p.spinLimit:
		case attempt < p.yieldLimit:
			runtime.Gosched()
		default:
			time.Sleep(sleep)
			sleep = min(sleep*2, p.maxSleep)
		}
	}
}

// IdlePolls returns how many times Next found the ring empty.
func (p *Poller) IdlePolls() uint64 { return p.idle }
