package recorder

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stems/capture"
	"go-stems/errs"
)

const rate = 176000 // CDAudio bytes per second

type rig struct {
	clock  *fakeClock
	seq    *fakeSequencer
	lines  *fakeOpener
	out    *fakePersister
	cfg    Config
	events []Progress
}

func newRig(durations ...time.Duration) *rig {
	clock := newFakeClock()
	return &rig{
		clock: clock,
		seq:   newFakeSequencer(clock, durations...),
		lines: &fakeOpener{clock: clock, rate: rate},
		out:   &fakePersister{},
		cfg: Config{
			Format:             capture.CDAudio,
			PreRoll:            2000 * time.Millisecond,
			Tail:               10000 * time.Millisecond,
			PollInterval:       time.Millisecond,
			ChunkBytes:         4000,
			InitialBufferBytes: 4096,
		},
	}
}

func (r *rig) run(ctx context.Context, opts ...Option) (Report, error) {
	opts = append([]Option{
		WithClock(r.clock),
		WithRunID("test"),
		WithObserver(func(p Progress) { r.events = append(r.events, p) }),
	}, opts...)
	return New(r.cfg, r.seq, r.lines, r.out, opts...).Run(ctx)
}

func (r *rig) phases(track int) []Phase {
	var out []Phase
	for _, e := range r.events {
		if e.Track == track && !e.Update {
			out = append(out, e.Phase)
		}
	}
	return out
}

func TestCapturedBytesMatchWindows(t *testing.T) {
	durations := []time.Duration{1500 * time.Millisecond, 3 * time.Second}
	r := newRig(durations...)

	report, err := r.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", report.RunID)
	require.Len(t, report.Tracks, 2)
	require.Len(t, r.out.files, 2)
	assert.Empty(t, report.Failed())

	for i, d := range durations {
		total := r.cfg.PreRoll + d + r.cfg.Tail
		want := float64(rate) * total.Seconds()
		f := r.out.files[i]
		assert.Equal(t, fmt.Sprintf("recording_%d.wav", i), f.name)
		assert.Equal(t, capture.CDAudio, f.format)
		assert.InDelta(t, want, float64(len(f.data)), float64(r.cfg.ChunkBytes), "track %d", i)
		assert.Equal(t, len(f.data), report.Tracks[i].Bytes)
	}
	assert.Equal(t, 2, r.seq.starts)
	assert.Equal(t, []int64{0, 0}, r.seq.positions)
}

func TestBufferKeepsEveryByteAcrossGrowth(t *testing.T) {
	r := newRig(700 * time.Millisecond)
	_, err := r.run(context.Background())
	require.NoError(t, err)
	require.Len(t, r.out.files, 1)

	data := r.out.files[0].data
	assert.Greater(t, len(data), r.cfg.InitialBufferBytes)
	for i, b := range data {
		if b != byte(i) {
			t.Fatalf("byte %d: got %d want %d", i, b, byte(i))
		}
	}
}

func TestOnlyRecordedTrackAudible(t *testing.T) {
	r := newRig(300*time.Millisecond, 200*time.Millisecond, 100*time.Millisecond)
	var violations []error
	r.lines.onRead = func(track int) {
		if err := r.seq.isolated(track); err != nil {
			violations = append(violations, err)
		}
	}
	_, err := r.run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)

	// isolation is undone after the last track
	for i, tr := range r.seq.tracks {
		assert.True(t, tr.muted, "track %d", i)
		assert.False(t, tr.solo, "track %d", i)
	}
	for i, l := range r.lines.lines {
		assert.True(t, l.stopped, "line %d", i)
		assert.True(t, l.closed, "line %d", i)
	}
}

func TestPhaseOrder(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	_, err := r.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Phase{
		PhaseIsolated, PhasePreRoll, PhasePlaying, PhaseTailCapture, PhasePersisted, PhaseDone,
	}, r.phases(0))
}

func TestNoTracks(t *testing.T) {
	r := newRig()
	report, err := r.run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Tracks)
	assert.Empty(t, r.lines.lines)
	require.Len(t, r.events, 1)
	assert.Equal(t, PhaseDone, r.events[0].Phase)
}

func TestOpenFailureAbortsRun(t *testing.T) {
	r := newRig(100*time.Millisecond, 100*time.Millisecond, 100*time.Millisecond)
	r.lines.failOn = map[int]error{1: errors.New("device busy")}

	report, err := r.run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDeviceUnavailable))
	assert.Contains(t, errs.Hints(err), "go-stems ports")

	// track 0 stays on disk, track 2 never starts
	require.Len(t, r.out.files, 1)
	assert.Equal(t, "recording_0.wav", r.out.files[0].name)
	require.Len(t, report.Tracks, 2)
	assert.NoError(t, report.Tracks[0].Err)
	assert.Error(t, report.Tracks[1].Err)
	assert.Len(t, r.lines.lines, 2)

	assert.True(t, r.seq.tracks[1].muted)
	assert.False(t, r.seq.tracks[1].solo)
}

func TestWriteFailureContinues(t *testing.T) {
	r := newRig(100*time.Millisecond, 100*time.Millisecond)
	r.out.failOn = map[int]error{0: os.ErrPermission}

	report, err := r.run(context.Background())
	require.NoError(t, err)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 0, failed[0].Track)
	assert.True(t, errors.Is(failed[0].Err, errs.ErrIO))
	assert.True(t, errors.Is(failed[0].Err, os.ErrPermission))

	require.Len(t, r.out.files, 1)
	assert.Equal(t, "recording_1.wav", r.out.files[0].name)

	var persisted []Progress
	for _, e := range r.events {
		if e.Phase == PhasePersisted {
			persisted = append(persisted, e)
		}
	}
	require.Len(t, persisted, 2)
	assert.Error(t, persisted[0].Err)
	assert.NoError(t, persisted[1].Err)
}

func TestCancelDuringPlayback(t *testing.T) {
	r := newRig(5*time.Second, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := r.run(ctx, WithObserver(func(p Progress) {
		if p.Phase == PhasePlaying {
			cancel()
		}
	}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Empty(t, r.out.files, "partial capture is not persisted")
	require.Len(t, report.Tracks, 1)
	require.Len(t, r.lines.lines, 1)
	assert.True(t, r.lines.lines[0].closed)
	assert.False(t, r.seq.running)
	assert.True(t, r.seq.tracks[0].muted)
}

func TestCancelledBeforeStart(t *testing.T) {
	r := newRig(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.run(ctx)
	assert.True(t, errors.Is(err, errs.ErrCancelled))
	assert.Empty(t, r.lines.lines)
}

func TestCancelWakesStalledRead(t *testing.T) {
	r := newRig(time.Second, time.Second)
	r.lines.stalled = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-r.lines.stalled
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := r.run(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, errs.ErrCancelled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("read still blocked after cancel")
	}
	assert.Empty(t, r.out.files)
	require.Len(t, r.lines.lines, 1)
	assert.True(t, r.lines.lines[0].closed)
}

func TestReadFailureIsFatal(t *testing.T) {
	r := newRig(time.Second, time.Second)
	r.lines.readErr = errors.New("input overflow")

	_, err := r.run(context.Background())
	assert.True(t, errors.Is(err, errs.ErrDeviceUnavailable))
	assert.Empty(t, r.out.files)
	require.Len(t, r.lines.lines, 1)
	assert.True(t, r.lines.lines[0].closed)
}

func TestPlaybackStartFailureIsFatal(t *testing.T) {
	r := newRig(time.Second)
	r.seq.startErr = errors.New("port gone")

	_, err := r.run(context.Background())
	assert.True(t, errors.Is(err, errs.ErrDeviceUnavailable))
	assert.Empty(t, r.out.files)
}

func TestZeroWindows(t *testing.T) {
	r := newRig(50 * time.Millisecond)
	r.cfg.PreRoll = 0
	r.cfg.Tail = 0

	report, err := r.run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tracks, 1)
	assert.InDelta(t, float64(rate)*0.05, float64(report.Tracks[0].Bytes), 2*float64(rate)/1000)
}

func TestPeriodicUpdates(t *testing.T) {
	r := newRig(time.Second)
	_, err := r.run(context.Background())
	require.NoError(t, err)

	updates := 0
	last := 0
	for _, e := range r.events {
		if e.Update {
			updates++
			assert.GreaterOrEqual(t, e.Bytes, last)
			last = e.Bytes
		}
	}
	// 13s of capture at 250ms
	assert.Greater(t, updates, 40)
}

func TestNewFillsPollInterval(t *testing.T) {
	r := newRig(time.Second)
	r.cfg.PollInterval = 0
	o := New(r.cfg, r.seq, r.lines, r.out)
	assert.Equal(t, DefaultConfig().PollInterval, o.cfg.PollInterval)
	assert.Equal(t, 2000*time.Millisecond, o.cfg.PreRoll)
}

func TestPhaseStrings(t *testing.T) {
	assert.Equal(t, "pre-roll", PhasePreRoll.String())
	assert.Equal(t, "unknown", Phase(42).String())
	assert.True(t, PhaseTailCapture.Capturing())
	assert.False(t, PhasePersisted.Capturing())
}
