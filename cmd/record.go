package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-stems/capture"
	"go-stems/config"
	"go-stems/errs"
	"go-stems/midi"
	"go-stems/recorder"
	"go-stems/sequencer"
	"go-stems/split"
	"go-stems/stems"
	"go-stems/theme"
	"go-stems/tui"
	"go-stems/widgets"
)

var recordFlags struct {
	targetFlags
	out     string
	prefix  string
	preRoll time.Duration
	tail    time.Duration
	split   bool
	tui     bool
}

func init() {
	fs := recordCmd.Flags()
	recordFlags.register(fs, true)
	fs.StringVarP(&recordFlags.out, "out", "o", ".", "directory for the recorded wav files")
	fs.StringVar(&recordFlags.prefix, "prefix", stems.DefaultPrefix, "wav file name prefix")
	fs.DurationVar(&recordFlags.preRoll, "preroll", 2*time.Second, "capture before each track starts playing")
	fs.DurationVar(&recordFlags.tail, "tail", 10*time.Second, "capture after each track stops playing")
	fs.BoolVar(&recordFlags.split, "split", false, "split the input per pitch before recording")
	fs.BoolVar(&recordFlags.tui, "tui", false, "show a live progress view")
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record <input.mid> [interface] [port] [mixer]",
	Short: "Record every track of a MIDI file into its own wav file",
	Long: `Record plays each track of the input alone on the matching MIDI output
while capturing the audio input, and writes recording_<track>.wav for each.
Every capture starts before playback (pre-roll) and continues after the
track has ended (tail). The input is usually the output of split; pass
--split to split a polyphonic file in the same step.`,
	Args: cobra.RangeArgs(1, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordFlags.apply(cmd.Flags(), cfg)
		applyRecordFlags(cmd, cfg)
		if err := applyPositional(cfg, args[1:]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runRecord(args[0])
	},
}

func applyRecordFlags(cmd *cobra.Command, c *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("out") {
		c.Recording.OutputDir = recordFlags.out
	}
	if fs.Changed("prefix") {
		c.Recording.FilePrefix = recordFlags.prefix
	}
	if fs.Changed("preroll") {
		c.Recording.PreRollMs = int(recordFlags.preRoll / time.Millisecond)
	}
	if fs.Changed("tail") {
		c.Recording.TailMs = int(recordFlags.tail / time.Millisecond)
	}
}

// recorderConfig maps the file config onto the orchestrator's
func recorderConfig(c *config.Config) recorder.Config {
	rc := recorder.DefaultConfig()
	rc.PreRoll = c.Recording.PreRoll()
	rc.Tail = c.Recording.Tail()
	rc.PollInterval = c.Recording.PollInterval()
	rc.ChunkBytes = c.Capture.ChunkBytes
	rc.LineBufferBytes = c.Capture.BufferBytes
	rc.InitialBufferBytes = c.Recording.InitialBufferBytes
	return rc
}

func runRecord(input string) error {
	seq, err := midi.ReadFile(input)
	if err != nil {
		return err
	}
	if recordFlags.split {
		if seq, err = split.File(seq, -1); err != nil {
			return err
		}
	}
	if err := seq.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Recording.OutputDir, 0755); err != nil {
		return errs.IO(err, "create output dir %s", cfg.Recording.OutputDir)
	}

	// The output is opened before any track is isolated so a missing synth
	// aborts the run without touching the sequencer.
	target, err := midi.OpenPlaybackTarget(cfg.Playback.Interface, cfg.Playback.Port)
	if err != nil {
		return errors.WithHint(err, "run `go-stems ports` to list the midi outputs")
	}
	defer midi.CloseDriver()
	defer target.Close()

	lines, err := openBackend(cfg.Capture.Backend, cfg.Capture.Device, logger)
	if err != nil {
		return err
	}
	defer lines.Close()

	runID := uuid.NewString()
	log := logger.With(zap.String("run", runID))
	log.Info("record",
		zap.String("input", input),
		zap.Int("tracks", len(seq.Tracks)),
		zap.String("midi", target.Name),
		zap.String("backend", cfg.Capture.Backend),
		zap.String("device", cfg.Capture.Device),
		zap.String("out", cfg.Recording.OutputDir))

	player := sequencer.New(seq, sequencer.Sender(target.Send), sequencer.WithLogger(logger))
	writer := stems.NewWriter(cfg.Recording.OutputDir, logger)
	writer.Prefix = cfg.Recording.FilePrefix
	rc := recorderConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []recorder.Option{
		recorder.WithLogger(logger),
		recorder.WithRunID(runID),
	}

	var report recorder.Report
	if recordFlags.tui {
		th, err := theme.Load(cfg.UI.Palette)
		if err != nil {
			return err
		}
		expected := meterTargets(rc.Format, rc.PreRoll, player.Duration(), rc.Tail, player.TrackCount())
		events := make(chan recorder.Progress, 64)
		opts = append(opts, recorder.WithObserver(tui.Observer(events)))
		orch := recorder.New(rc, player, lines, writer, opts...)

		m := tui.NewModel(th, filepath.Base(input), expected, events, cancel)
		report, err = tui.Run(m, func() (recorder.Report, error) { return orch.Run(ctx) })
		if err != nil {
			printReport(os.Stdout, report)
			return err
		}
	} else {
		opts = append(opts, recorder.WithObserver(logProgress(log)))
		orch := recorder.New(rc, player, lines, writer, opts...)
		report, err = orch.Run(ctx)
		printReport(os.Stdout, report)
		if err != nil {
			return err
		}
	}

	if failed := report.Failed(); len(failed) > 0 {
		return errors.Newf("%d of %d tracks were not saved", len(failed), len(report.Tracks))
	}
	if recordFlags.tui {
		printReport(os.Stdout, report)
	}
	return nil
}

// meterTargets is the capture size of every track. Muted tracks still
// advance the timeline, so each track plays for the whole sequence.
func meterTargets(f capture.Format, preRoll, play, tail time.Duration, tracks int) []int {
	out := make([]int, tracks)
	for i := range out {
		out[i] = f.BytesFor(preRoll + play + tail)
	}
	return out
}

func logProgress(l *zap.Logger) func(recorder.Progress) {
	return func(p recorder.Progress) {
		if p.Update {
			return
		}
		l.Info("phase",
			zap.Int("track", p.Track),
			zap.Int("of", p.TrackCount),
			zap.Stringer("phase", p.Phase),
			zap.Int("bytes", p.Bytes))
	}
}

func printReport(w io.Writer, r recorder.Report) {
	for _, t := range r.Tracks {
		if t.Err != nil {
			fmt.Fprintf(w, "track %d: %s: %v\n", t.Track, errs.KindOf(t.Err), t.Err)
			continue
		}
		if t.Path == "" {
			continue
		}
		fmt.Fprintf(w, "track %d: %s %s (%s)\n", t.Track, t.Path,
			widgets.FormatBytes(t.Bytes), t.Duration.Round(time.Millisecond))
	}
}

// consoleTaken reports whether cmd draws a full screen view
func consoleTaken(cmd *cobra.Command) bool {
	return cmd == recordCmd && recordFlags.tui
}
