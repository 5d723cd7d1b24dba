package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"go-stems/midi"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump <file.mid>",
	Short: "Print every event of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := midi.ReadFile(args[0])
		if err != nil {
			return err
		}
		return midi.Dump(os.Stdout, seq)
	},
}
