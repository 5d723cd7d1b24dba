// Package split turns one polyphonic track into one monophonic track per pitch.
package split

import (
	"github.com/cockroachdb/errors"

	"go-stems/errs"
	"go-stems/midi"
)

// Option configures Split
type Option func(*options)

type options struct {
	tempo uint32
}

// WithTempo sets the tempo written into each output track header
func WithTempo(micros uint32) Option {
	return func(o *options) {
		if micros > 0 {
			o.tempo = micros
		}
	}
}

// Split distributes the note on and note off events of in across one new
// track per pitch. Tracks are ordered by the first appearance of their pitch
// and each starts with a tempo header at tick 0. Other events are dropped.
// Ticks, velocities and note on/off kinds are kept as they are, including
// note ons that are never released.
func Split(in midi.Track, ticksPerQuarter uint16, opts ...Option) (*midi.Sequence, error) {
	o := options{tempo: midi.DefaultTempo}
	for _, opt := range opts {
		opt(&o)
	}
	if ticksPerQuarter == 0 {
		return nil, errs.InvalidSequence("ticks per quarter note must be positive")
	}

	// pitch -> index into tracks
	byPitch := make(map[uint8]int)
	var tracks []midi.Track

	for i, e := range in {
		if !e.IsNote() {
			continue
		}
		pitch, err := e.NotePitch()
		if err != nil {
			return nil, errors.Wrapf(err, "event %d", i)
		}
		idx, ok := byPitch[pitch]
		if !ok {
			idx = len(tracks)
			byPitch[pitch] = idx
			tracks = append(tracks, midi.Track{midi.TempoHeader(o.tempo)})
		}
		tracks[idx] = append(tracks[idx], e.Clone())
	}

	return &midi.Sequence{TicksPerQuarter: ticksPerQuarter, Tracks: tracks}, nil
}

// SelectTrack picks the track to split. A non-negative index selects that
// track; otherwise the only track holding note events is used.
func SelectTrack(seq *midi.Sequence, index int) (midi.Track, error) {
	if index >= 0 {
		if index >= len(seq.Tracks) {
			return nil, errs.InvalidSequence("track %d out of range, file has %d", index, len(seq.Tracks))
		}
		return seq.Tracks[index], nil
	}

	found := -1
	for i, tr := range seq.Tracks {
		if tr.NoteCount() == 0 {
			continue
		}
		if found >= 0 {
			return nil, errs.InvalidSequence("tracks %d and %d both hold notes, pick one with --track", found, i)
		}
		found = i
	}
	if found < 0 {
		return midi.Track{}, nil
	}
	return seq.Tracks[found], nil
}

// File splits the note track of seq, carrying over its resolution and first tempo
func File(seq *midi.Sequence, index int) (*midi.Sequence, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	tr, err := SelectTrack(seq, index)
	if err != nil {
		return nil, err
	}
	return Split(tr, seq.TicksPerQuarter, WithTempo(seq.Tempo()))
}
