package midi

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stems/errs"
)

func TestNewEventClassifies(t *testing.T) {
	on := NewEvent(10, []byte{0x93, 60, 100})
	assert.Equal(t, KindNoteOn, on.Kind)
	assert.Equal(t, uint8(3), on.Channel)
	assert.Equal(t, uint8(60), on.Pitch)
	assert.Equal(t, uint8(100), on.Velocity)
	assert.True(t, on.Sounding())

	off := NewEvent(20, []byte{0x80, 60, 0})
	assert.Equal(t, KindNoteOff, off.Kind)
	assert.False(t, off.Sounding())

	silent := NewEvent(20, []byte{0x90, 60, 0})
	assert.Equal(t, KindNoteOn, silent.Kind)
	assert.False(t, silent.Sounding())

	assert.Equal(t, KindOther, NewEvent(0, []byte{0xB0, 7, 100}).Kind)
	assert.Equal(t, KindMeta, NewEvent(0, []byte{0xFF, 0x03, 1, 'x'}).Kind)
	assert.Equal(t, KindOther, NewEvent(0, nil).Kind)
}

func TestNotePitchRejectsShortPayload(t *testing.T) {
	e := NewEvent(480, []byte{0x90})
	assert.Equal(t, KindNoteOn, e.Kind)
	_, err := e.NotePitch()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrMalformedEvent))
}

func TestTempoEvent(t *testing.T) {
	e := TempoHeader(500000)
	assert.Equal(t, int64(0), e.Tick)
	us, ok := e.TempoMicros()
	require.True(t, ok)
	assert.Equal(t, uint32(500000), us)

	_, ok = NoteOnEvent(0, 0, 60, 1).TempoMicros()
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	s := &Sequence{TicksPerQuarter: 480, Tracks: []Track{{
		NoteOnEvent(10, 0, 60, 90),
		NoteOffEvent(5, 0, 60, 0),
	}}}
	assert.True(t, errors.Is(s.Validate(), errs.ErrInvalidSequence))

	s = &Sequence{Tracks: []Track{{}}}
	assert.True(t, errors.Is(s.Validate(), errs.ErrInvalidSequence))
}

func TestSequenceTempo(t *testing.T) {
	s := &Sequence{TicksPerQuarter: 96, Tracks: []Track{
		{NoteOnEvent(0, 0, 60, 1)},
		{TempoEvent(0, 600000), TempoEvent(96, 400000)},
	}}
	assert.Equal(t, uint32(600000), s.Tempo())
	assert.Equal(t, DefaultTempo, (&Sequence{TicksPerQuarter: 96}).Tempo())
}

func TestFileRoundTrip(t *testing.T) {
	in := &Sequence{TicksPerQuarter: 480, Tracks: []Track{
		{TempoHeader(500000), NoteOnEvent(0, 0, 60, 90), NoteOffEvent(480, 0, 60, 0)},
		{TempoHeader(500000), NoteOnEvent(480, 0, 64, 80), NoteOffEvent(960, 0, 64, 0)},
	}}
	path := filepath.Join(t.TempDir(), "split.mid")
	require.NoError(t, WriteFile(in, path))

	out, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(480), out.TicksPerQuarter)
	require.Len(t, out.Tracks, 2)
	for i := range in.Tracks {
		require.Len(t, out.Tracks[i], len(in.Tracks[i]), "track %d", i)
		for j, e := range in.Tracks[i] {
			got := out.Tracks[i][j]
			assert.Equal(t, e.Tick, got.Tick)
			assert.Equal(t, e.Kind, got.Kind)
			assert.Equal(t, e.Pitch, got.Pitch)
		}
	}
	assert.Equal(t, uint32(500000), out.Tempo())
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.mid"))
	assert.True(t, errors.Is(err, errs.ErrIO))
}

func TestDecodeCorruptFile(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("not a midi file"),
		[]byte("MThd\x00\x00\x00\x06\x00\x01"),
	} {
		_, err := Decode(bytes.NewReader(data))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvalidSequence), "got %v", err)
		assert.False(t, errors.Is(err, errs.ErrIO))
	}
}

func TestChromaticSample(t *testing.T) {
	s := ChromaticSample()
	require.NoError(t, s.Validate())
	require.Len(t, s.Tracks, 1)
	assert.Equal(t, 200, s.Tracks[0].NoteCount())
	assert.Equal(t, uint8(60), s.Tracks[0][1].Pitch)
	assert.Equal(t, uint8(60+25%24), s.Tracks[0][1+2*25].Pitch)
	assert.Equal(t, int64(100*960), s.LastTick())
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, ChromaticSample()))
	assert.Contains(t, buf.String(), "track 0: 201 events, 200 notes")
	assert.Contains(t, buf.String(), "tempo    500000 us/qn")
}

func TestMatchPort(t *testing.T) {
	names := []string{"Midi Through Port-0", "UM-ONE:UM-ONE MIDI 1 20:0", "USB MIDI Interface Port 2"}

	idx, err := MatchPort(names, "usb midi", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	idx, err = MatchPort(names, "UM-ONE", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = MatchPort(names, "through", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = MatchPort(names, "launchpad", 1)
	assert.True(t, errors.Is(err, errs.ErrDeviceUnavailable))
}
