package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink receives pipeline events. Emit is called from the processing
// goroutine and, with asynchronous recognition, from the recognition worker,
// so implementations must be safe for concurrent use and must not block.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(Event)

// Emit implements [Sink].
func (f SinkFunc) Emit(e Event) { f(e) }

// Multi fans an event out to every sink in order.
type Multi []Sink

// Emit implements [Sink].
func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

type logSink struct {
	log *slog.Logger
}

// NewLogSink returns a [Sink] that writes events to l. Boundaries are logged
// at debug level, results at info, failures at error.
func NewLogSink(l *slog.Logger) Sink {
	if l == nil {
		l = slog.Default()
	}
	return logSink{log: l}
}

func (s logSink) Emit(e Event) {
	attrs := []any{"utterance_id", e.UtteranceID}
	switch e.Kind {
	case KindTalking:
		s.log.Debug("pipeline: talking", attrs...)
	case KindProcessing:
		s.log.Debug("pipeline: processing", append(attrs,
			"audio_seconds", e.AudioSeconds,
			"forced", e.Forced,
		)...)
	case KindResult:
		s.log.Info("pipeline: transcript", append(attrs,
			"text", e.Text,
			"provider", e.Provider,
			"latency", e.Latency,
			"audio_seconds", e.AudioSeconds,
			"corrections", len(e.Corrections),
		)...)
	case KindError:
		s.log.Error("pipeline: recognition failed", append(attrs,
			"provider", e.Provider,
			"latency", e.Latency,
			"err", e.Err,
		)...)
	case KindDropped:
		s.log.Warn("pipeline: recognition queue full, utterance dropped", append(attrs,
			"audio_seconds", e.AudioSeconds,
		)...)
	}
}

type consoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink returns a [Sink] that prints the plain progress lines an
// operator watches in a terminal:
//
//	TALKING
//	PROCESSING
//	<transcript>
//	took 812345678ns
func NewConsoleSink(w io.Writer) Sink {
	return &consoleSink{w: w}
}

func (s *consoleSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Kind {
	case KindTalking, KindProcessing, KindDropped:
		fmt.Fprintln(s.w, string(e.Kind))
	case KindResult:
		fmt.Fprintln(s.w, e.Text)
		fmt.Fprintf(s.w, "took %dns\n", e.Latency.Nanoseconds())
	case KindError:
		fmt.Fprintf(s.w, "error: %s\n", e.Err)
	}
}
