// Package app wires the voxgate subsystems into a running service.
//
// The App struct owns the full lifecycle: New builds the recognizer chain,
// the capture source, the segmentation pipeline and the HTTP surface from a
// config, Run drives them until the context is cancelled or a finite source
// runs dry, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithRecognizer,
// WithSource, WithSinks). When an option is not provided, New creates the
// real implementation through the provider [config.Registry].
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/internal/feed"
	"github.com/MrWong99/voxgate/internal/health"
	"github.com/MrWong99/voxgate/internal/observe"
	"github.com/MrWong99/voxgate/internal/pipeline"
	"github.com/MrWong99/voxgate/internal/resilience"
	"github.com/MrWong99/voxgate/internal/transcript"
	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// serverShutdownTimeout bounds the graceful HTTP drain once Run is told to
// stop.
const serverShutdownTimeout = 5 * time.Second

// App owns all subsystem lifetimes of one voxgate listening session.
type App struct {
	cfg     *config.Config
	version string

	registry   *config.Registry
	recognizer stt.Recognizer
	fallback   *resilience.RecognizerFallback
	source     audio.Source
	sinks      []pipeline.Sink
	metrics    *observe.Metrics
	metricsH   http.Handler
	levels     *slog.LevelVar
	configPath string

	// Subsystems, initialised in New and torn down in Shutdown.
	processor *pipeline.Processor
	hub       *feed.Hub
	health    *health.Handler
	server    *http.Server
	listener  net.Listener
	watcher   *config.Watcher

	ran atomic.Bool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry sets the provider registry used to build recognizers and
// capture sources named in the config.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithRecognizer injects a recognizer instead of building the configured
// chain. Fallbacks from the config are not applied.
func WithRecognizer(r stt.Recognizer) Option {
	return func(a *App) { a.recognizer = r }
}

// WithSource injects a capture source instead of creating one from config.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithSinks adds event sinks next to the log sink and the feed.
func WithSinks(s ...pipeline.Sink) Option {
	return func(a *App) { a.sinks = append(a.sinks, s...) }
}

// WithMetrics sets the instruments used by the pipeline and the HTTP
// middleware. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithLogLevel hands the app the level variable behind the process logger
// so a config reload can change verbosity.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.levels = lv }
}

// WithVersion sets the version reported on /healthz.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithConfigPath enables the config watcher on path. Live sections are
// applied to the running pipeline as the file changes.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates a fully wired App. All initialisation happens synchronously, so
// every returned error is fatal for the session. Resources acquired before a
// failure are released before New returns.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.init(ctx); err != nil {
		a.runClosers()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	// ── 1. Recognizer chain ─────────────────────────────────────────────
	if err := a.initRecognizer(); err != nil {
		return err
	}

	// ── 2. Capture source ───────────────────────────────────────────────
	if err := a.initSource(); err != nil {
		return err
	}

	// ── 3. Event feed ───────────────────────────────────────────────────
	if a.cfg.Feed.Enabled {
		a.hub = feed.New(feed.WithBuffer(a.cfg.Feed.Buffer), feed.WithMetrics(a.metrics))
		a.closers = append(a.closers, func() error { a.hub.Close(); return nil })
	}

	// ── 4. Pipeline ─────────────────────────────────────────────────────
	if err := a.initPipeline(); err != nil {
		return err
	}

	// ── 5. Health and HTTP ──────────────────────────────────────────────
	a.initHealth()
	if err := a.initServer(); err != nil {
		return err
	}

	// ── 6. Config watcher ───────────────────────────────────────────────
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.onConfigChange)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.watcher = w
	}

	slog.InfoContext(ctx, "app initialised",
		"recognizer", stt.NameOf(a.recognizer),
		"capture", a.processor.SourceFormat().String(),
		"target", a.processor.Format().String(),
		"listen", a.Addr(),
	)
	return nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initRecognizer() error {
	if a.recognizer != nil {
		return nil
	}
	if a.registry == nil {
		return errors.New("app: no recognizer injected and no registry configured")
	}

	keywords := a.cfg.Hotwords.Boosts()
	primary, err := a.createRecognizer(a.cfg.Providers.STT, keywords)
	if err != nil {
		return err
	}
	if len(a.cfg.Providers.STTFallbacks) == 0 {
		a.recognizer = primary
		return nil
	}

	rc := a.cfg.Recognition
	fb := resilience.NewRecognizerFallback(primary, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  rc.CircuitBreaker.MaxFailures,
			ResetTimeout: rc.CircuitBreaker.ResetTimeout,
			HalfOpenMax:  rc.CircuitBreaker.HalfOpenMax,
		},
		AttemptTimeout: attemptTimeout(rc, len(a.cfg.Providers.STTFallbacks)+1),
	})
	for _, entry := range a.cfg.Providers.STTFallbacks {
		r, err := a.createRecognizer(entry, keywords)
		if err != nil {
			return err
		}
		if err := fb.AddFallback(r); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}
	a.fallback = fb
	a.recognizer = fb
	return nil
}

// attemptTimeout returns the per-member budget of a chain of n recognizers.
// Without an explicit value each member gets an equal share of the call
// timeout, so a hung primary leaves time for its fallbacks.
func attemptTimeout(rc config.RecognitionConfig, n int) time.Duration {
	if rc.AttemptTimeout > 0 || rc.Timeout <= 0 || n <= 0 {
		return rc.AttemptTimeout
	}
	return rc.Timeout / time.Duration(n)
}

// createRecognizer builds one recognizer and schedules its release.
func (a *App) createRecognizer(entry config.ProviderEntry, keywords []stt.KeywordBoost) (stt.Recognizer, error) {
	r, err := a.registry.CreateRecognizer(entry, keywords)
	if err != nil {
		return nil, fmt.Errorf("app: recognizer %q: %w", entry.Name, err)
	}
	if c, ok := r.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	slog.Debug("recognizer created", "name", stt.NameOf(r), "sample_rate", r.SampleRate())
	return r, nil
}

func (a *App) initSource() error {
	if a.source == nil {
		if a.registry == nil {
			return errors.New("app: no source injected and no registry configured")
		}
		src, err := a.registry.CreateSource(a.cfg.Capture)
		if err != nil {
			return fmt.Errorf("app: capture source %q: %w", a.cfg.Capture.Source, err)
		}
		a.source = src
	}
	// The processor closes the source when Run returns; this covers an app
	// that is shut down without running.
	a.closers = append(a.closers, func() error {
		if a.ran.Load() {
			return nil
		}
		return a.source.Close()
	})
	return nil
}

func (a *App) initPipeline() error {
	format := a.source.Format()
	if err := format.Validate(); err != nil {
		return fmt.Errorf("app: capture format: %w", err)
	}
	rate := a.recognizer.SampleRate()

	sinks := []pipeline.Sink{pipeline.NewLogSink(slog.Default())}
	if a.hub != nil {
		sinks = append(sinks, a.hub)
	}
	sinks = append(sinks, a.sinks...)

	rc := a.cfg.Recognition
	p, err := pipeline.New(pipeline.Config{
		Source:         a.source,
		Recognizer:     a.recognizer,
		Segment:        a.cfg.Segmenter.Segment(rate, format.Channels),
		Sink:           pipeline.Multi(sinks),
		Corrector:      newCorrector(a.cfg.Hotwords),
		Metrics:        a.metrics,
		BufferSeconds:  a.cfg.Capture.BufferSeconds,
		PreloadSeconds: max(a.cfg.Capture.PreloadSeconds, 0),
		MaxPollSleep:   a.cfg.Capture.MaxPollSleep,
		Timeout:        rc.Timeout,
		Async:          rc.Async,
		QueueSize:      rc.QueueSize,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.processor = p
	return nil
}

func (a *App) initHealth() {
	a.health = health.New(a.version, health.Checker{
		Name: "capture",
		Check: func(context.Context) error {
			if !a.processor.Stats().Running {
				return errors.New("capture is not running")
			}
			return nil
		},
	})
	if a.fallback != nil {
		a.health.Add(health.Checker{
			Name: "recognizer",
			Check: func(context.Context) error {
				if !a.fallback.Available() {
					return errors.New("every recognizer circuit is open")
				}
				return nil
			},
		})
	}
}

func (a *App) initServer() error {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", addr, err)
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.closers = append(a.closers, func() error {
		// Serve closes the listener itself once it has run.
		if err := a.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	return nil
}

// Handler returns the HTTP surface: health probes, the status document,
// metrics and the event feed, wrapped in the observability middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.HandleFunc("GET /status", a.handleStatus)
	if a.metricsH != nil {
		mux.Handle("GET /metrics", a.metricsH)
	}
	if a.hub != nil {
		mux.Handle(a.cfg.Feed.Path, a.hub)
	}
	return observe.Middleware(a.metrics)(mux)
}

// Status is the document served on /status.
type Status struct {
	Version    string                   `json:"version"`
	Running    bool                     `json:"running"`
	Talking    bool                     `json:"talking"`
	Utterances uint64                   `json:"utterances"`
	Failures   uint64                   `json:"failures"`
	Dropped    uint64                   `json:"dropped"`
	Overflow   uint64                   `json:"overflow_samples"`
	Capture    string                   `json:"capture"`
	Target     string                   `json:"target"`
	Recognizer string                   `json:"recognizer"`
	Chain      []resilience.EntryStatus `json:"chain,omitempty"`
	Listeners  int                      `json:"listeners"`
}

// Status returns a snapshot of the running session.
func (a *App) Status() Status {
	st := a.processor.Stats()
	s := Status{
		Version:    a.version,
		Running:    st.Running,
		Talking:    st.Talking,
		Utterances: st.Utterances,
		Failures:   st.Failures,
		Dropped:    st.Dropped,
		Overflow:   st.DroppedSamples,
		Capture:    a.processor.SourceFormat().String(),
		Target:     a.processor.Format().String(),
		Recognizer: stt.NameOf(a.recognizer),
	}
	if a.fallback != nil {
		s.Chain = a.fallback.Status()
	}
	if a.hub != nil {
		s.Listeners = a.hub.Subscribers()
	}
	return s
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(a.Status())
}

// Addr returns the bound HTTP address, or "" when the server is disabled.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Processor exposes the running pipeline.
func (a *App) Processor() *pipeline.Processor { return a.processor }

// ─── Live reconfiguration ────────────────────────────────────────────────────

func (a *App) onConfigChange(_, _ *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged && a.levels != nil {
		a.levels.Set(observe.Level(string(d.NewLogLevel)))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SegmenterChanged {
		f := a.processor.Format()
		if err := a.processor.SetSegment(d.NewSegmenter.Segment(f.SampleRate, f.Channels)); err != nil {
			slog.Warn("config reload: segmenter rejected", "err", err)
		}
	}
	if d.HotwordsChanged {
		a.processor.SetCorrector(newCorrector(d.NewHotwords))
		slog.Info("hot word correction updated",
			"words", len(d.NewHotwords.Words),
			"correct", d.NewHotwords.Correct,
		)
		slog.Info("recognizer keyword biasing takes effect on restart")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config reload: some changes need a restart", "sections", d.RestartRequired)
	}
}

func newCorrector(h config.HotwordsConfig) *transcript.Corrector {
	if !h.Correct || len(h.Words) == 0 {
		return nil
	}
	words := make([]string, len(h.Words))
	for i, w := range h.Words {
		words[i] = w.Word
	}
	return transcript.New(words, transcript.WithMinSimilarity(h.MinSimilarity))
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts capture, the HTTP server and the config watcher and blocks until
// ctx is cancelled, a finite source is exhausted or a component fails. The
// HTTP server is drained before Run returns.
func (a *App) Run(ctx context.Context) error {
	a.ran.Store(true)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return a.processor.Run(gctx)
	})

	if a.server != nil {
		g.Go(func() error {
			slog.Info("http server listening", "addr", a.Addr())
			var err error
			if tls := a.cfg.Server.TLS; tls != nil {
				err = a.server.ServeTLS(a.listener, tls.CertFile, tls.KeyFile)
			} else {
				err = a.server.Serve(a.listener)
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("app: http server: %w", err)
		})
		g.Go(func() error {
			<-gctx.Done()
			// Close the feed first so websocket streams end and do not hold
			// up the drain.
			if a.hub != nil {
				a.hub.Close()
			}
			sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
			defer scancel()
			if err := a.server.Shutdown(sctx); err != nil {
				slog.Warn("http server shutdown", "err", err)
			}
			return nil
		})
	}

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases everything New acquired. It is safe to call more than
// once; subsequent calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) runClosers() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
	a.closers = nil
}
