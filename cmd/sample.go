package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-stems/midi"
)

func init() {
	rootCmd.AddCommand(sampleCmd)
}

var sampleCmd = &cobra.Command{
	Use:   "sample <output.mid>",
	Short: "Write a 100 note chromatic test file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := midi.WriteFile(midi.ChromaticSample(), args[0]); err != nil {
			return err
		}
		fmt.Println("wrote", args[0])
		return nil
	},
}
