package audio

import "sync/atomic"

// Ring is a fixed-capacity single-producer/single-consumer queue of raw
// samples. Exactly one goroutine may call the producer methods (Push,
// PushSlice, Preload, Close) and exactly one goroutine may call Pop.
//
// Neither side ever blocks or allocates. When the ring is full the incoming
// sample is discarded and counted in [Ring.Dropped]; samples already queued
// are never overwritten.
//
// With a frame size above one, PushSlice only accepts whole frames, so an
// overflow never splits an interleaved frame across the kept and dropped
// parts of a block.
type Ring struct {
	buf   []float32
	size  uint64
	frame uint64

	// head is the index of the next sample to read, tail the index of the
	// next slot to write. Both grow monotonically; tail-head is the fill level.
	head atomic.Uint64
	tail atomic.Uint64

	dropped atomic.Uint64
	closed  atomic.Bool
}

// RingOption configures a [Ring].
type RingOption func(*Ring)

// WithFrameSize sets the number of interleaved samples per frame, normally
// the channel count. Values below one are ignored.
func WithFrameSize(n int) RingOption {
	return func(r *Ring) {
		if n > 0 {
			r.frame = uint64(n)
		}
	}
}

// NewRing returns an empty ring holding at most capacity samples.
// It panics if capacity is not positive.
func NewRing(capacity int, opts ...RingOption) *Ring {
	if capacity <= 0 {
		panic("audio: ring capacity must be positive")
	}
	r := &Ring{
		buf:   make([]float32, capacity),
		size:  uint64(capacity),
		frame: 1,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Push appends s and reports whether it was accepted. It returns false and
// increments the drop counter when the ring is full.
func (r *Ring) Push(s float32) bool {
	t := r.tail.Load()
	if t-r.head.Load() >= r.size {
		r.dropped.Add(1)
		return false
	}
	r.buf[t%r.size] = s
	r.tail.Store(t + 1)
	return true
}

// PushSlice appends as many whole frames as fit, in order, and returns the
// number of samples accepted. The remainder is counted as dropped.
func (r *Ring) PushSlice(samples []float32) int {
	t := r.tail.Load()
	free := r.size - (t - r.head.Load())
	n := uint64(len(samples))
	if n > free {
		free -= free % r.frame
		r.dropped.Add(n - free)
		n = free
	}
	for i := range n {
		r.buf[(t+i)%r.size] = samples[i]
	}
	r.tail.Store(t + n)
	return int(n)
}

// Preload queues n zero samples. It returns the number actually queued.
func (r *Ring) Preload(n int) int {
	queued := 0
	for range n {
		if !r.Push(0) {
			break
		}
		queued++
	}
	return queued
}

// Pop removes and returns the oldest sample. ok is false when the ring is
// empty.
func (r *Ring) Pop() (s float32, ok bool) {
	h := r.head.Load()
	if h == r.tail.Load() {
		return 0, false
	}
	s = r.buf[h%r.size]
	r.head.Store(h + 1)
	return s, true
}

// Len returns the number of queued samples. The value is a snapshot and may
// be stale by the time the caller reads it. It is exact when called from the
// consumer goroutine.
func (r *Ring) Len() int {
	h := r.head.Load()
	return int(r.tail.Load() - h)
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return int(r.size) }

// Dropped returns the total number of samples discarded because the ring was
// full.
func (r *Ring) Dropped() uint64 { return r.dropped.Load() }

// Close marks the producer side as finished. Queued samples remain readable;
// once they are consumed the ring is exhausted.
func (r *Ring) Close() { r.closed.Store(true) }

// Closed reports whether Close has been called.
func (r *Ring) Closed() bool { return r.closed.Load() }
