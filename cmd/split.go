package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-stems/midi"
	"go-stems/split"
)

var splitTrack int

func init() {
	splitCmd.Flags().IntVar(&splitTrack, "track", -1, "input track to split (default: the only track with notes)")
	rootCmd.AddCommand(splitCmd)
}

var splitCmd = &cobra.Command{
	Use:   "split <input.mid> <output.mid>",
	Short: "Write one track per pitch",
	Long: `Split reads the note track of a MIDI file and writes a new file with one
track per distinct pitch, in order of first appearance. Each track starts
with the input's tempo. Every other non-note event is dropped.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSplit(os.Stdout, args[0], args[1], splitTrack)
	},
}

func runSplit(w io.Writer, input, output string, track int) error {
	seq, err := midi.ReadFile(input)
	if err != nil {
		return err
	}
	out, err := split.File(seq, track)
	if err != nil {
		return err
	}
	if err := midi.WriteFile(out, output); err != nil {
		return err
	}

	logger.Info("split",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("pitches", len(out.Tracks)))
	fmt.Fprintf(w, "%s: %d pitches -> %s\n", input, len(out.Tracks), output)
	return nil
}
