package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-stems/midi"
	"go-stems/sequencer"
)

const playPoll = 200 * time.Millisecond

var playFlags targetFlags

func init() {
	playFlags.register(playCmd.Flags(), false)
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <input.mid> [interface] [port]",
	Short: "Play a MIDI file on an output port",
	Long: `Play sends every track of a MIDI file to the matching output port and
returns when the last event has been sent. Ctrl-C stops playback and
turns off every sounding note.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		playFlags.apply(cmd.Flags(), cfg)
		if err := applyPositional(cfg, args[1:]); err != nil {
			return err
		}

		seq, err := midi.ReadFile(args[0])
		if err != nil {
			return err
		}
		target, err := midi.OpenPlaybackTarget(cfg.Playback.Interface, cfg.Playback.Port)
		if err != nil {
			return err
		}
		defer midi.CloseDriver()
		defer target.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		player := sequencer.New(seq, sequencer.Sender(target.Send), sequencer.WithLogger(logger))
		logger.Info("playing",
			zap.String("file", args[0]),
			zap.String("port", target.Name),
			zap.Duration("duration", player.Duration()))
		return play(ctx, player, playPoll)
	},
}

// play runs p to the end or until ctx is done
func play(ctx context.Context, p *sequencer.Sequencer, poll time.Duration) error {
	if err := p.Start(); err != nil {
		return err
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for p.IsRunning() {
		select {
		case <-ctx.Done():
			p.Stop()
			fmt.Fprintln(os.Stderr, "stopped")
			return nil
		case <-ticker.C:
		}
	}
	p.Stop()
	return nil
}
