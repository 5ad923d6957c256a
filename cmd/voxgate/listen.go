package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxgate/internal/app"
	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/internal/observe"
	"github.com/MrWong99/voxgate/internal/pipeline"
)

// shutdownTimeout bounds the graceful stop after a signal.
const shutdownTimeout = 15 * time.Second

type listenFlags struct {
	quiet bool
	watch bool
}

func newListenCmd(root *rootFlags) *cobra.Command {
	flags := &listenFlags{}
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Capture audio and transcribe every utterance",
		Long: `Opens the configured capture source and prints TALKING, PROCESSING and
each transcript as utterances are detected. Health, metrics and the
websocket event feed are served on server.listen_addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListen(cmd.Context(), cmd.OutOrStdout(), root.configPath, flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "do not print events to stdout")
	cmd.Flags().BoolVar(&flags.watch, "watch", true, "apply config file changes while running")
	return cmd
}

func runListen(parent context.Context, out io.Writer, configPath string, flags *listenFlags) error {
	// ── Configuration and logging ─────────────────────────────────────────
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	levels := setupLogging(cfg)

	slog.Info("voxgate starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	opts := []app.Option{
		app.WithRegistry(reg),
		app.WithVersion(version),
		app.WithLogLevel(levels),
		app.WithMetricsHandler(telemetry.Handler()),
	}
	if !flags.quiet {
		opts = append(opts, app.WithSinks(pipeline.NewConsoleSink(out)))
	}
	if flags.watch {
		opts = append(opts, app.WithConfigPath(configPath))
	}

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}

	slog.Info("listening; press Ctrl+C to stop")
	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		if runErr == nil {
			runErr = err
		}
	}
	slog.Info("goodbye")
	return runErr
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	chain := []string{cfg.Providers.STT.Name}
	for _, fb := range cfg.Providers.STTFallbacks {
		chain = append(chain, fb.Name)
	}
	listen := cfg.Server.ListenAddr
	if listen == "" {
		listen = "(disabled)"
	}
	device := cfg.Capture.Device
	if device == "" {
		device = "default"
	}

	fmt.Fprintln(os.Stderr, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║        voxgate startup summary        ║")
	fmt.Fprintln(os.Stderr, "╚═══════════════════════════════════════╝")
	fmt.Fprintf(os.Stderr, "  Capture      : %s (%s)\n", cfg.Capture.Source, device)
	fmt.Fprintf(os.Stderr, "  Recognizers  : %s\n", strings.Join(chain, " → "))
	fmt.Fprintf(os.Stderr, "  Threshold    : %d\n", cfg.Segmenter.Threshold)
	fmt.Fprintf(os.Stderr, "  Silence      : %s (%s)\n", silenceLimit(cfg.Segmenter), cfg.Segmenter.SilencePolicy)
	if cfg.Segmenter.MaxUtterance > 0 {
		fmt.Fprintf(os.Stderr, "  Max utterance: %s\n", cfg.Segmenter.MaxUtterance)
	}
	fmt.Fprintf(os.Stderr, "  Hot words    : %d (correction %t)\n", len(cfg.Hotwords.Words), cfg.Hotwords.Correct)
	fmt.Fprintf(os.Stderr, "  HTTP         : %s\n", listen)
	if cfg.Feed.Enabled {
		fmt.Fprintf(os.Stderr, "  Event feed   : %s\n", cfg.Feed.Path)
	}
	fmt.Fprintln(os.Stderr)
}

func silenceLimit(s config.SegmenterConfig) string {
	if s.SilenceSamples > 0 {
		return fmt.Sprintf("%d samples", s.SilenceSamples)
	}
	return s.SilenceDuration.String()
}
