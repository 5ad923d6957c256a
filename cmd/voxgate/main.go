// Command voxgate listens to an audio input, cuts the stream into utterances
// wherever the speaker pauses, and sends each utterance to a speech
// recognizer.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "voxgate: %v\n", err)
		return 1
	}
	return 0
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "voxgate",
		Short: "Voice-activity-gated speech recognition",
		Long: `voxgate captures audio from an input device, segments it into
utterances by amplitude and silence, and transcribes each utterance.

Commands:
  listen      capture and transcribe continuously
  transcribe  transcribe a WAV file
  devices     list audio input devices
  version     print the version`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(
		newListenCmd(flags),
		newTranscribeCmd(flags),
		newDevicesCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "voxgate", version)
		},
	}
}

// loadConfig reads the configuration file and explains the common mistake of
// running without one.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", path)
	}
	return cfg, err
}

// setupLogging installs the process logger and returns the level variable
// behind it so a config reload can change verbosity.
func setupLogging(cfg *config.Config) *slog.LevelVar {
	lv := new(slog.LevelVar)
	lv.Set(observe.Level(string(cfg.Server.LogLevel)))
	slog.SetDefault(observe.NewLeveledLogger(os.Stderr, cfg.Server.LogFormat, lv))
	return lv
}
