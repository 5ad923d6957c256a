// Package mock provides an in-memory [audio.Source] for unit tests.
//
// Source replays a fixed clip through the capture callback in fixed-size
// blocks, from its own goroutine, the way a device thread would. It records
// calls so tests can assert on lifecycle.
//
// Typical usage:
//
//	src := &mock.Source{
//	    SourceFormat: audio.Format{SampleRate: 16000, Channels: 1},
//	    Samples:      clip,
//	    BlockSize:    160,
//	}
//	_ = src.Start(func(s []float32) { ring.PushSlice(s) })
//	<-src.Done()
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/voxgate/pkg/audio"
)

// Source is a mock implementation of [audio.Source]. Set the exported
// fields before calling Start; inspect the CallCount fields afterwards.
type Source struct {
	mu sync.Mutex

	// SourceFormat is returned by Format.
	SourceFormat audio.Format

	// Samples is replayed through the callback once, in order.
	Samples []float32

	// BlockSize is the number of samples per callback. Defaults to 256.
	BlockSize int

	// BlockInterval, when non-zero, is slept between callbacks to
	// approximate real-time delivery.
	BlockInterval time.Duration

	// StreamErrors are pushed on the Errors channel before replay starts.
	StreamErrors []error

	// StartErr, if non-nil, is returned by Start and no replay happens.
	StartErr error

	// CloseErr is returned by Close.
	CloseErr error

	CallCountStart int
	CallCountClose int

	errs    chan error
	done    chan struct{}
	stop    chan struct{}
	started bool
	closed  bool
}

var _ audio.Source = (*Source)(nil)

// Format implements [audio.Source].
func (s *Source) Format() audio.Format {
	return s.SourceFormat
}

// Start implements [audio.Source]. Replay runs on a new goroutine.
func (s *Source) Start(onData func([]float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	if s.StartErr != nil {
		return s.StartErr
	}
	s.init()
	if s.started || s.closed {
		return nil
	}
	s.started = true
	for _, err := range s.StreamErrors {
		select {
		case s.errs <- err:
		default:
		}
	}

	block := s.BlockSize
	if block <= 0 {
		block = 256
	}
	samples := s.Samples
	interval := s.BlockInterval
	go func() {
		defer close(s.done)
		for off := 0; off < len(samples); off += block {
			select {
			case <-s.stop:
				return
			default:
			}
			onData(samples[off:min(off+block, len(samples))])
			if interval > 0 {
				time.Sleep(interval)
			}
		}
	}()
	return nil
}

// Errors implements [audio.Source].
func (s *Source) Errors() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	return s.errs
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.init()
	if !s.closed {
		s.closed = true
		close(s.stop)
		close(s.errs)
		if !s.started {
			close(s.done)
		}
	}
	return s.CloseErr
}

// Done is closed once every sample has been delivered or Close stopped the
// replay.
func (s *Source) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	return s.done
}

func (s *Source) init() {
	if s.errs == nil {
		s.errs = make(chan error, max(len(s.StreamErrors), 1))
		s.done = make(chan struct{})
		s.stop = make(chan struct{})
	}
}
