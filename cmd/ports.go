package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-stems/capture"
	"go-stems/config"
	"go-stems/midi"
)

var portsBackends []string

func init() {
	portsCmd.Flags().StringSliceVar(&portsBackends, "backend",
		[]string{config.BackendPortAudio, config.BackendMalgo}, "capture backends to list")
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List midi outputs and audio inputs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer midi.CloseDriver()

		names, err := midi.OutPortNames()
		if err != nil {
			return err
		}
		printPorts(os.Stdout, names)

		for _, name := range portsBackends {
			b, err := openBackend(name, "", logger)
			if err != nil {
				fmt.Fprintf(os.Stdout, "\n%s: %v\n", name, err)
				continue
			}
			devices, err := b.Devices()
			b.Close()
			if err != nil {
				fmt.Fprintf(os.Stdout, "\n%s: %v\n", name, err)
				continue
			}
			printDevices(os.Stdout, name, devices)
		}
		return nil
	},
}

func printPorts(w io.Writer, names []string) {
	fmt.Fprintln(w, "MIDI outputs:")
	if len(names) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, n := range names {
		fmt.Fprintf(w, "  %2d  %s\n", i, n)
	}
}

func printDevices(w io.Writer, backend string, devices []capture.Device) {
	fmt.Fprintf(w, "\n%s inputs:\n", backend)
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%dch\n", mark, d.Name, d.HostAPI, d.MaxChannels)
	}
	tw.Flush()
}
