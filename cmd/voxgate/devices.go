package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/audio/portaudio"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Long: `Lists the input devices PortAudio can open. Use a device name as
capture.device in the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := portaudio.Devices()
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devices)
		},
	}
}

func printDevices(w io.Writer, devices []audio.DeviceInfo) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "no input devices found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEFAULT\tNAME\tHOST API\tCHANNELS\tRATE")
	for _, d := range devices {
		mark := ""
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.0f\n", mark, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return tw.Flush()
}
