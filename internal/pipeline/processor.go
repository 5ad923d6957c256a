// Package pipeline runs the capture → convert → segment → recognize loop.
//
// A [Processor] owns one capture session. The device callback pushes raw
// samples into a lock-free [audio.Ring]; the processing goroutine polls the
// ring through a rate [audio.Converter] into a [segment.Segmenter] and, at
// every utterance boundary, downmixes the utterance and hands it to the
// [stt.Recognizer]. Progress is reported as [Event] values to a [Sink].
//
// Recognition runs on the processing goroutine unless Config.Async is set,
// in which case a single worker drains a bounded queue and utterances that
// do not fit are dropped so segmentation never stalls.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxgate/internal/observe"
	"github.com/MrWong99/voxgate/internal/segment"
	"github.com/MrWong99/voxgate/internal/transcript"
	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// Default processing parameters.
const (
	defaultBufferSeconds = 2
	defaultTimeout       = 30 * time.Second
	defaultQueueSize     = 4
)

// ErrAlreadyRunning is returned by [Processor.Run] when the processor is
// already running or has run before.
var ErrAlreadyRunning = errors.New("pipeline: processor already ran")

// Config configures a [Processor].
type Config struct {
	// Source delivers raw capture samples. Required for [Processor.Run].
	Source audio.Source

	// Format describes the raw samples when there is no Source, as when
	// segmenting a decoded file with [Processor.Process].
	Format audio.Format

	// Recognizer transcribes utterances. Its SampleRate is the conversion
	// target. Required.
	Recognizer stt.Recognizer

	// Segment holds the segmentation tunables. SilenceSamples and
	// MaxSamples are in interleaved samples at the recognizer rate; a zero
	// SilenceSamples is derived from SilenceDuration.
	Segment segment.Config

	// Sink receives events. May be nil.
	Sink Sink

	// Corrector rewrites hot words in results. May be nil.
	Corrector *transcript.Corrector

	// Metrics records pipeline metrics. Defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// BufferSeconds sizes the transfer ring in seconds of audio at the
	// recognizer rate. Defaults to 2.
	BufferSeconds int

	// PreloadSeconds of silence are queued before capture starts. Zero
	// disables the preload.
	PreloadSeconds int

	// MaxPollSleep caps the poller's backoff while the ring is empty.
	MaxPollSleep time.Duration

	// Timeout bounds each recognizer call. Defaults to 30s.
	Timeout time.Duration

	// Async moves recognition to a worker goroutine fed through a queue of
	// QueueSize utterances (default 4).
	Async     bool
	QueueSize int

	// Clock replaces time.Now for the wall-clock silence policy.
	Clock segment.Clock
}

// Stats is a snapshot of processor counters.
type Stats struct {
	Running        bool
	Talking        bool
	Utterances     uint64
	Failures       uint64
	Dropped        uint64
	DroppedSamples uint64
}

// Processor is one capture-to-transcript session. Its tunables can be
// changed while it runs with [Processor.SetSegment] and
// [Processor.SetCorrector].
type Processor struct {
	src      audio.Source
	rec      stt.Recognizer
	recName  string
	sink     Sink
	metrics  *observe.Metrics
	clock    segment.Clock
	srcFmt   audio.Format
	rate     int
	channels int

	ringCap    int
	preload    int
	maxSleep   time.Duration
	timeout    time.Duration
	async      bool
	queueSize  int
	checkEvery int

	segCfg      atomic.Pointer[segment.Config]
	pendingSeg  atomic.Pointer[segment.Config]
	corrector   atomic.Pointer[transcript.Corrector]
	started     atomic.Bool
	running     atomic.Bool
	talking     atomic.Bool
	utterances  atomic.Uint64
	failures    atomic.Uint64
	dropped     atomic.Uint64
	droppedSamp atomic.Uint64
}

type utterance struct {
	id      uuid.UUID
	samples []int16
	forced  bool
}

// New validates cfg and returns a Processor ready to [Processor.Run].
// Every error it returns is fatal for the session: an unusable capture
// format, an unsupported channel count, a recognizer without a sample rate
// or invalid segmentation tunables.
func New(cfg Config) (*Processor, error) {
	if cfg.Recognizer == nil {
		return nil, errors.New("pipeline: recognizer is required")
	}
	f := cfg.Format
	if cfg.Source != nil {
		f = cfg.Source.Format()
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: capture format: %w", err)
	}
	rate := cfg.Recognizer.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("pipeline: recognizer: %w: %d", audio.ErrInvalidRate, rate)
	}

	p := &Processor{
		src:       cfg.Source,
		rec:       cfg.Recognizer,
		recName:   stt.NameOf(cfg.Recognizer),
		sink:      cfg.Sink,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		srcFmt:    f,
		rate:      rate,
		channels:  f.Channels,
		maxSleep:  cfg.MaxPollSleep,
		timeout:   cfg.Timeout,
		async:     cfg.Async,
		queueSize: cfg.QueueSize,
	}
	if p.sink == nil {
		p.sink = Multi(nil)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	if p.queueSize <= 0 {
		p.queueSize = defaultQueueSize
	}
	bufSec := cfg.BufferSeconds
	if bufSec <= 0 {
		bufSec = defaultBufferSeconds
	}
	p.ringCap = bufSec * rate * p.channels
	p.preload = min(max(cfg.PreloadSeconds, 0)*rate*p.channels, p.ringCap)
	p.checkEvery = max(rate*p.channels/10, 1)

	if err := p.SetSegment(cfg.Segment); err != nil {
		return nil, err
	}
	p.segCfg.Store(p.pendingSeg.Swap(nil))
	p.corrector.Store(cfg.Corrector)
	return p, nil
}

// Format returns the stream layout the segmenter sees: the recognizer's
// sample rate at the capture channel count.
func (p *Processor) Format() audio.Format {
	return audio.Format{SampleRate: p.rate, Channels: p.channels}
}

// SourceFormat returns the native capture format.
func (p *Processor) SourceFormat() audio.Format { return p.srcFmt }

// SetSegment validates cfg and schedules it for the processing loop, which
// picks it up within a tenth of a second of audio. An open utterance
// continues under the new limits.
func (p *Processor) SetSegment(cfg segment.Config) error {
	cfg = cfg.Resolve(p.rate, p.channels)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("pipeline: segmenter: %w", err)
	}
	p.pendingSeg.Store(&cfg)
	return nil
}

// Segment returns the segmentation tunables in effect.
func (p *Processor) Segment() segment.Config {
	if c := p.pendingSeg.Load(); c != nil {
		return *c
	}
	return *p.segCfg.Load()
}

// SetCorrector replaces the hot-word corrector. nil disables correction.
func (p *Processor) SetCorrector(c *transcript.Corrector) {
	p.corrector.Store(c)
}

// Stats returns a snapshot of the processor counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Running:        p.running.Load(),
		Talking:        p.talking.Load(),
		Utterances:     p.utterances.Load(),
		Failures:       p.failures.Load(),
		Dropped:        p.dropped.Load(),
		DroppedSamples: p.droppedSamp.Load(),
	}
}

// Run captures and processes audio until ctx is cancelled or a finite source
// is exhausted. The source is started on entry and closed on return. An
// utterance still open when a finite source ends is flushed; one open at
// cancellation is discarded.
//
// Run may only be called once.
func (p *Processor) Run(ctx context.Context) error {
	if p.src == nil {
		return errors.New("pipeline: run needs a source")
	}
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ring := audio.NewRing(p.ringCap, audio.WithFrameSize(p.channels))
	ring.Preload(p.preload)

	if err := p.src.Start(func(samples []float32) { ring.PushSlice(samples) }); err != nil {
		return fmt.Errorf("pipeline: start source: %w", err)
	}
	defer func() {
		if err := p.src.Close(); err != nil {
			slog.Warn("pipeline: close source", "err", err)
		}
	}()

	p.running.Store(true)
	defer p.running.Store(false)
	slog.Info("pipeline: listening",
		"source", p.srcFmt.String(),
		"target_rate", p.rate,
		"recognizer", p.recName,
		"async", p.async,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		p.watchStreamErrors(gctx)
		return nil
	})
	if fin, ok := p.src.(audio.Finite); ok {
		g.Go(func() error {
			select {
			case <-fin.Done():
				ring.Close()
			case <-gctx.Done():
			}
			return nil
		})
	}

	var queue chan utterance
	if p.async {
		queue = make(chan utterance, p.queueSize)
		g.Go(func() error {
			for u := range queue {
				_ = p.recognize(context.WithoutCancel(gctx), u)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		if queue != nil {
			defer close(queue)
		}
		var pollOpts []audio.PollerOption
		if p.maxSleep > 0 {
			pollOpts = append(pollOpts, audio.WithMaxSleep(p.maxSleep))
		}
		return p.loop(gctx, audio.NewPoller(gctx, ring, pollOpts...), ring, queue)
	})

	return g.Wait()
}

// Process segments a finite signal of raw samples in the processor's source
// format, recognizing each utterance synchronously, and flushes a trailing
// open utterance when the signal ends. It shares Run's single-use guard.
func (p *Processor) Process(ctx context.Context, sig audio.Signal) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	p.running.Store(true)
	defer p.running.Store(false)
	return p.loop(ctx, sig, nil, nil)
}

// Transcribe downmixes and recognizes one complete interleaved utterance at
// the recognizer rate without segmenting it, emitting PROCESSING followed by
// RESULT or ERROR. It returns the recognition error, if any.
func (p *Processor) Transcribe(ctx context.Context, samples []int16) error {
	mono, err := audio.Downmix(samples, p.channels)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	u := utterance{id: uuid.New(), samples: mono}
	p.utterances.Add(1)
	p.emitProcessing(u)
	return p.recognize(ctx, u)
}

// watchStreamErrors logs and counts capture stream errors until ctx is done,
// then drains whatever is still buffered.
func (p *Processor) watchStreamErrors(ctx context.Context) {
	errs := p.src.Errors()
	report := func(err error) {
		slog.Warn("pipeline: capture stream error", "err", err)
		p.metrics.StreamErrors.Add(context.WithoutCancel(ctx), 1)
	}
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			report(err)
		case <-ctx.Done():
			for {
				select {
				case err, ok := <-errs:
					if !ok {
						return
					}
					report(err)
				default:
					return
				}
			}
		}
	}
}

// loop pulls sig through the rate converter into the segmenter until sig is
// exhausted. ring, when non-nil, is the capture buffer behind sig and is
// sampled for fill level and overflow.
func (p *Processor) loop(ctx context.Context, sig audio.Signal, ring *audio.Ring, queue chan<- utterance) error {
	conv, err := audio.NewConverter(sig, p.srcFmt.SampleRate, p.rate, p.channels)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	segOpts := []segment.Option{segment.WithCapacity(p.rate * p.channels)}
	if p.clock != nil {
		segOpts = append(segOpts, segment.WithClock(p.clock))
	}
	seg := segment.New(*p.segCfg.Load(), segOpts...)

	var (
		cur     utterance
		n       int
		dropped uint64
	)
	report := func() {
		if c := p.pendingSeg.Swap(nil); c != nil {
			seg.SetConfig(*c)
			p.segCfg.Store(c)
			slog.Info("pipeline: segmenter retuned",
				"threshold", c.Threshold,
				"policy", c.Policy,
				"silence_duration", c.SilenceDuration,
				"silence_samples", c.SilenceSamples,
				"max_samples", c.MaxSamples,
			)
		}
		if ring == nil {
			return
		}
		p.metrics.BufferFill.Record(ctx, int64(ring.Len()))
		if d := ring.Dropped(); d > dropped {
			slog.Warn("pipeline: transfer buffer full, samples dropped", "dropped", d-dropped, "total", d)
			p.metrics.DroppedSamples.Add(ctx, int64(d-dropped))
			p.droppedSamp.Store(d)
			dropped = d
		}
	}

	for {
		s, ok := conv.Next()
		if !ok {
			break
		}
		if n++; n%p.checkEvery == 0 {
			report()
		}

		b, samples := seg.Push(s)
		switch b {
		case segment.BoundaryStart:
			cur = utterance{id: uuid.New()}
			p.talking.Store(true)
			p.metrics.Talking.Add(ctx, 1)
			p.emit(Event{Kind: KindTalking, UtteranceID: cur.id})
		case segment.BoundaryEnd, segment.BoundaryForced:
			cur.samples = samples
			cur.forced = b == segment.BoundaryForced
			p.endTalking(ctx)
			p.flush(ctx, cur, queue)
		case segment.BoundaryDiscarded:
			p.endTalking(ctx)
			p.metrics.RecordUtterance(ctx, observe.OutcomeDiscarded, 0)
		}
	}
	report()

	if ctx.Err() != nil {
		if p.talking.Load() {
			p.endTalking(context.WithoutCancel(ctx))
			p.metrics.RecordUtterance(context.WithoutCancel(ctx), observe.OutcomeDiscarded, 0)
			slog.Debug("pipeline: open utterance discarded on shutdown", "utterance_id", cur.id)
		}
		return nil
	}
	if samples := seg.Drain(); samples != nil {
		cur.samples = samples
		cur.forced = false
		p.endTalking(ctx)
		p.flush(ctx, cur, queue)
	} else if p.talking.Load() {
		p.endTalking(ctx)
	}
	return nil
}

func (p *Processor) endTalking(ctx context.Context) {
	if p.talking.Swap(false) {
		p.metrics.Talking.Add(ctx, -1)
	}
}

// flush downmixes u and recognizes it, inline or through the queue. The
// samples alias the segmenter's buffer, so queued utterances are copied.
func (p *Processor) flush(ctx context.Context, u utterance, queue chan<- utterance) {
	mono, err := audio.Downmix(u.samples, p.channels)
	if err != nil {
		// Channel count was validated in New.
		slog.Error("pipeline: downmix", "err", err)
		return
	}
	u.samples = mono
	p.utterances.Add(1)
	p.emitProcessing(u)

	if queue == nil {
		_ = p.recognize(ctx, u)
		return
	}
	if p.channels == 1 {
		u.samples = slices.Clone(mono)
	}
	select {
	case queue <- u:
	default:
		p.dropped.Add(1)
		p.metrics.RecordUtterance(ctx, observe.OutcomeDropped, p.seconds(len(mono)))
		p.emit(Event{
			Kind:         KindDropped,
			UtteranceID:  u.id,
			Samples:      len(mono),
			AudioSeconds: p.seconds(len(mono)),
			Forced:       u.forced,
		})
	}
}

func (p *Processor) emitProcessing(u utterance) {
	p.emit(Event{
		Kind:         KindProcessing,
		UtteranceID:  u.id,
		Samples:      len(u.samples),
		AudioSeconds: p.seconds(len(u.samples)),
		Forced:       u.forced,
	})
}

func (p *Processor) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	p.sink.Emit(e)
}

func (p *Processor) seconds(samples int) float64 {
	return stt.SamplesDuration(samples, p.rate).Seconds()
}
