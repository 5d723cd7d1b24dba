package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-stems/config"
	"go-stems/debug"
	"go-stems/errs"
)

var (
	cfgFile  string
	verbose  bool
	debugLog bool

	cfg    = config.DefaultConfig()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "go-stems",
	Short: "Split a polyphonic MIDI track per pitch and record each pitch through a synth",
	Long: `go-stems splits one polyphonic MIDI track into one track per pitch, then
plays each track alone on an external synth while capturing its audio,
writing one WAV file per pitch.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		debug.Disable()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/go-stems/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug level console logging")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "write a debug log to ~/.config/go-stems/debug.log")
}

func setup(cmd *cobra.Command) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	// a full screen view owns the terminal, so its logs only go to the file
	quiet := consoleTaken(cmd)
	logger, err = debug.NewLogger(debug.Options{
		Console: !quiet,
		Verbose: verbose,
		File:    debugLog || cfg.Log.DebugFile || quiet,
	})
	return err
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		debug.Disable()
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := errs.Hints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}
