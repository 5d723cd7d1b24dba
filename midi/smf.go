package midi

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gitlab.com/gomidi/midi/v2/smf"

	"go-stems/errs"
)

// ReadFile loads a standard MIDI file with metric time
func ReadFile(path string) (*Sequence, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO(err, "read midi file %s", path)
	}
	return Decode(bytes.NewReader(dat))
}

// Decode parses a standard MIDI file. Absolute ticks are rebuilt from the
// stored deltas and end-of-track markers are dropped.
func Decode(r io.Reader) (seq *Sequence, err error) {
	// smf panics on some truncated files
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if rec := recover(); rec != nil {
			seq = nil
			err = errs.InvalidSequence("parse midi file: %v", rec)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errs.InvalidSequence("parse midi file: %v", err)
	}
	return FromSMF(s)
}

// FromSMF converts a parsed file to a Sequence
func FromSMF(s *smf.SMF) (*Sequence, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errs.InvalidSequence("unsupported time format %v, need metric ticks", s.TimeFormat)
	}
	seq := &Sequence{
		TicksPerQuarter: uint16(ticks),
		Tracks:          make([]Track, 0, len(s.Tracks)),
	}
	for _, st := range s.Tracks {
		tr := make(Track, 0, len(st))
		var abs int64
		for _, ev := range st {
			abs += int64(ev.Delta)
			e := NewEvent(abs, append([]byte(nil), ev.Message...))
			if e.isEndOfTrack() {
				continue
			}
			tr = append(tr, e)
		}
		seq.Tracks = append(seq.Tracks, tr)
	}
	return seq, seq.Validate()
}

// SMF converts seq to a format 1 file. Each track is closed with an
// end-of-track marker at its last tick.
func (s *Sequence) SMF() (*smf.SMF, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := smf.New()
	out.TimeFormat = smf.MetricTicks(s.TicksPerQuarter)
	for i, tr := range s.Tracks {
		var st smf.Track
		var last int64
		for _, e := range tr {
			if len(e.Payload) == 0 {
				continue
			}
			st.Add(uint32(e.Tick-last), e.Payload)
			last = e.Tick
		}
		st.Close(0)
		if err := out.Add(st); err != nil {
			return nil, errs.InvalidSequence("add track %d: %v", i, err)
		}
	}
	return out, nil
}

// WriteFile writes seq as a standard MIDI file
func WriteFile(s *Sequence, path string) error {
	out, err := s.SMF()
	if err != nil {
		return err
	}
	if err := out.WriteFile(path); err != nil {
		return errs.IO(err, "write midi file %s", path)
	}
	return nil
}

// Dump writes a human readable listing of every track
func Dump(w io.Writer, s *Sequence) error {
	if _, err := fmt.Fprintf(w, "resolution: %d ticks/qn, tracks: %d, tempo: %d us/qn\n", s.TicksPerQuarter, len(s.Tracks), s.Tempo()); err != nil {
		return errs.IO(err, "dump")
	}
	for i, tr := range s.Tracks {
		if _, err := fmt.Fprintf(w, "\ntrack %d: %d events, %d notes, last tick %d\n", i, len(tr), tr.NoteCount(), tr.LastTick()); err != nil {
			return errs.IO(err, "dump")
		}
		for _, e := range tr {
			if _, err := fmt.Fprintln(w, e.String()); err != nil {
				return errs.IO(err, "dump")
			}
		}
	}
	return nil
}

// ChromaticSample builds a one-track test file: 100 quarter notes walking
// two octaves up from middle C at 120 BPM, 960 ticks per quarter.
func ChromaticSample() *Sequence {
	const (
		ppq   = 960
		notes = 100
	)
	tr := Track{TempoHeader(DefaultTempo)}
	for i := 0; i < notes; i++ {
		pitch := uint8(60 + i%24)
		start := int64(i * ppq)
		tr = append(tr,
			NoteOnEvent(start, 0, pitch, 64),
			NoteOffEvent(start+ppq, 0, pitch, 64),
		)
	}
	return &Sequence{TicksPerQuarter: ppq, Tracks: []Track{tr}}
}
