package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-stems/capture"
	"go-stems/config"
	"go-stems/errs"
	"go-stems/midi"
	"go-stems/recorder"
	"go-stems/sequencer"
)

func TestRunSplitSample(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "sample.mid")
	out := filepath.Join(dir, "split.mid")
	require.NoError(t, midi.WriteFile(midi.ChromaticSample(), in))

	var buf bytes.Buffer
	require.NoError(t, runSplit(&buf, in, out, -1))
	assert.Contains(t, buf.String(), "24 pitches")

	seq, err := midi.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, seq.Tracks, 24)
	for i, tr := range seq.Tracks {
		require.NotEmpty(t, tr)
		tempo, ok := tr[0].TempoMicros()
		require.True(t, ok, "track %d", i)
		assert.Equal(t, midi.DefaultTempo, tempo)
		assert.Equal(t, 100/24+boolInt(i < 100%24), tr.NoteCount()/2, "track %d", i)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestRunSplitMissingInput(t *testing.T) {
	err := runSplit(&bytes.Buffer{}, filepath.Join(t.TempDir(), "nope.mid"), "out.mid", -1)
	assert.True(t, errors.Is(err, errs.ErrIO))
}

func TestApplyPositional(t *testing.T) {
	c := config.DefaultConfig()
	require.NoError(t, applyPositional(c, []string{"UM-ONE", "2", "Scarlett"}))
	assert.Equal(t, "UM-ONE", c.Playback.Interface)
	assert.Equal(t, 2, c.Playback.Port)
	assert.Equal(t, "Scarlett", c.Capture.Device)

	c = config.DefaultConfig()
	require.NoError(t, applyPositional(c, nil))
	assert.Equal(t, config.DefaultConfig(), c)

	err := applyPositional(config.DefaultConfig(), []string{"UM-ONE", "two"})
	require.Error(t, err)
	assert.Contains(t, errs.Hints(err), "go-stems ports")
}

func TestRecorderConfig(t *testing.T) {
	c := config.DefaultConfig()
	c.Recording.PreRollMs = 500
	c.Capture.ChunkBytes = 4096

	rc := recorderConfig(c)
	assert.Equal(t, 500*time.Millisecond, rc.PreRoll)
	assert.Equal(t, 10*time.Second, rc.Tail)
	assert.Equal(t, time.Millisecond, rc.PollInterval)
	assert.Equal(t, 4096, rc.ChunkBytes)
	assert.Equal(t, 8192, rc.LineBufferBytes)
	assert.Equal(t, 16<<20, rc.InitialBufferBytes)
}

func TestRecordFlagsOverrideConfig(t *testing.T) {
	defer func() { recordFlags.out, recordFlags.tail = ".", 10*time.Second }()
	require.NoError(t, recordCmd.Flags().Parse([]string{"--out", "takes", "--tail", "3s", "--port", "4"}))

	c := config.DefaultConfig()
	recordFlags.apply(recordCmd.Flags(), c)
	applyRecordFlags(recordCmd, c)
	assert.Equal(t, "takes", c.Recording.OutputDir)
	assert.Equal(t, 3000, c.Recording.TailMs)
	assert.Equal(t, 4, c.Playback.Port)
	assert.Equal(t, 2000, c.Recording.PreRollMs)
	assert.Equal(t, "recording_", c.Recording.FilePrefix)
}

func TestMeterTargetsCoverWholeSequence(t *testing.T) {
	seq := &midi.Sequence{TicksPerQuarter: 480, Tracks: []midi.Track{
		{midi.NoteOnEvent(0, 0, 60, 100), midi.NoteOffEvent(240, 0, 60, 0)},
		{midi.NoteOnEvent(0, 0, 64, 100), midi.NoteOffEvent(1920, 0, 64, 0)},
	}}
	player := sequencer.New(seq, func(gomidi.Message) error { return nil })
	require.Equal(t, 2*time.Second, player.Duration())

	got := meterTargets(capture.CDAudio, time.Second, player.Duration(), time.Second, player.TrackCount())
	want := capture.CDAudio.BytesFor(4 * time.Second)
	assert.Equal(t, []int{want, want}, got)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, recorder.Report{Tracks: []recorder.TrackResult{
		{Track: 0, Path: "recording_0.wav", Bytes: 2048, Duration: 1500 * time.Millisecond},
		{Track: 1, Err: errs.IO(errors.New("disk full"), "write recording_1.wav")},
	}})
	out := buf.String()
	assert.Contains(t, out, "track 0: recording_0.wav 2.0 KiB (1.5s)")
	assert.Contains(t, out, "track 1: io:")
	assert.Contains(t, out, "disk full")
}
