package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxgate/internal/app"
	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/internal/pipeline"
)

type transcribeFlags struct {
	segment  bool
	provider string
	model    string
}

func newTranscribeCmd(root *rootFlags) *cobra.Command {
	flags := &transcribeFlags{}
	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe a WAV file",
		Long: `Decodes a WAV file, converts it to the recognizer's sample rate and
transcribes it in one request. With --segment the file is first cut into
utterances exactly as live capture would be.

The configuration file is optional here; without one, --provider selects
the recognizer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configSet := cmd.Flags().Changed("config")
			return runTranscribe(cmd.Context(), cmd.OutOrStdout(), root.configPath, configSet, args[0], flags)
		},
	}
	cmd.Flags().BoolVar(&flags.segment, "segment", false, "split the file into utterances before transcribing")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "override providers.stt.name")
	cmd.Flags().StringVar(&flags.model, "model", "", "override providers.stt.model")
	return cmd
}

func runTranscribe(ctx context.Context, out io.Writer, configPath string, configSet bool, path string, flags *transcribeFlags) error {
	cfg, err := config.Load(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !configSet:
		cfg = config.Default()
	case err != nil:
		return err
	}
	if flags.provider != "" {
		cfg.Providers.STT.Name = flags.provider
		cfg.Providers.STTFallbacks = nil
	}
	if flags.model != "" {
		cfg.Providers.STT.Model = flags.model
	}
	if cfg.Providers.STT.Name == "" {
		return errors.New("no recognizer configured; set providers.stt.name or pass --provider")
	}
	setupLogging(cfg)

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	rec, err := reg.CreateRecognizer(cfg.Providers.STT, cfg.Hotwords.Boosts())
	if err != nil {
		return fmt.Errorf("recognizer %q: %w", cfg.Providers.STT.Name, err)
	}
	if c, ok := rec.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("close recognizer", "err", err)
			}
		}()
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	return app.TranscribeWAV(ctx, f, app.FileJob{
		Recognizer: rec,
		Config:     cfg,
		Sink:       pipeline.NewConsoleSink(out),
		Segment:    flags.segment,
	})
}
