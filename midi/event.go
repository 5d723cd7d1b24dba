package midi

import (
	"fmt"

	"go-stems/errs"
)

// MIDI status nibbles
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80

	metaStatus   uint8 = 0xFF
	metaTempo    uint8 = 0x51
	metaEndTrack uint8 = 0x2F
)

// DefaultTempo is 120 BPM in microseconds per quarter note
const DefaultTempo uint32 = 500000

// Kind classifies an event
type Kind uint8

const (
	KindOther Kind = iota
	KindNoteOn
	KindNoteOff
	KindMeta
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note-on"
	case KindNoteOff:
		return "note-off"
	case KindMeta:
		return "meta"
	}
	return "other"
}

// Event is one timestamped MIDI message. Payload holds the raw bytes
// including the status byte; Pitch and Velocity are only meaningful for
// note events with a full payload.
type Event struct {
	Tick     int64
	Kind     Kind
	Channel  uint8
	Pitch    uint8
	Velocity uint8
	Payload  []byte
}

// NewEvent classifies raw message bytes
func NewEvent(tick int64, payload []byte) Event {
	e := Event{Tick: tick, Payload: payload}
	if len(payload) == 0 {
		return e
	}
	status := payload[0]
	switch {
	case status == metaStatus:
		e.Kind = KindMeta
	case status&0xF0 == NoteOn:
		e.Kind = KindNoteOn
	case status&0xF0 == NoteOff:
		e.Kind = KindNoteOff
	}
	if e.IsNote() {
		e.Channel = status & 0x0F
		if len(payload) >= 3 {
			e.Pitch = payload[1]
			e.Velocity = payload[2]
		}
	}
	return e
}

// NoteOnEvent builds a note on for channel 0..15
func NoteOnEvent(tick int64, channel, pitch, velocity uint8) Event {
	return NewEvent(tick, []byte{NoteOn | channel&0x0F, pitch & 0x7F, velocity & 0x7F})
}

// NoteOffEvent builds a note off for channel 0..15
func NoteOffEvent(tick int64, channel, pitch, velocity uint8) Event {
	return NewEvent(tick, []byte{NoteOff | channel&0x0F, pitch & 0x7F, velocity & 0x7F})
}

// TempoEvent builds a set-tempo meta event
func TempoEvent(tick int64, micros uint32) Event {
	return NewEvent(tick, []byte{metaStatus, metaTempo, 3, byte(micros >> 16), byte(micros >> 8), byte(micros)})
}

// TempoHeader is the tempo event every split track starts with
func TempoHeader(micros uint32) Event {
	return TempoEvent(0, micros)
}

// IsNote reports whether e is a note on or note off
func (e Event) IsNote() bool {
	return e.Kind == KindNoteOn || e.Kind == KindNoteOff
}

// NotePitch reads the pitch from the payload
func (e Event) NotePitch() (uint8, error) {
	if len(e.Payload) < 3 {
		return 0, errs.MalformedEvent("%s at tick %d has %d payload bytes, need 3", e.Kind, e.Tick, len(e.Payload))
	}
	return e.Payload[1], nil
}

// Sounding reports whether e starts a note. A note on with velocity 0 ends one.
func (e Event) Sounding() bool {
	return e.Kind == KindNoteOn && e.Velocity > 0
}

// TempoMicros returns the tempo of a set-tempo meta event
func (e Event) TempoMicros() (uint32, bool) {
	p := e.Payload
	if e.Kind != KindMeta || len(p) < 6 || p[1] != metaTempo || p[2] != 3 {
		return 0, false
	}
	return uint32(p[3])<<16 | uint32(p[4])<<8 | uint32(p[5]), true
}

func (e Event) isEndOfTrack() bool {
	return e.Kind == KindMeta && len(e.Payload) >= 2 && e.Payload[1] == metaEndTrack
}

// Clone returns a copy of e that shares no memory with it
func (e Event) Clone() Event {
	e.Payload = append([]byte(nil), e.Payload...)
	return e
}

func (e Event) String() string {
	switch {
	case e.IsNote() && len(e.Payload) >= 3:
		return fmt.Sprintf("%8d %-8s ch=%-2d pitch=%-3d vel=%d", e.Tick, e.Kind, e.Channel+1, e.Pitch, e.Velocity)
	case e.Kind == KindMeta:
		if us, ok := e.TempoMicros(); ok {
			return fmt.Sprintf("%8d tempo    %d us/qn (%.2f bpm)", e.Tick, us, 60e6/float64(us))
		}
	}
	return fmt.Sprintf("%8d %-8s % X", e.Tick, e.Kind, e.Payload)
}

// Track is an ordered list of events with non-decreasing ticks
type Track []Event

// NoteCount counts note on and note off events
func (t Track) NoteCount() int {
	n := 0
	for _, e := range t {
		if e.IsNote() {
			n++
		}
	}
	return n
}

// LastTick returns the tick of the final event, or 0 for an empty track
func (t Track) LastTick() int64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Tick
}

// Sequence is a timing resolution plus tracks
type Sequence struct {
	TicksPerQuarter uint16
	Tracks          []Track
}

// Validate checks the resolution and tick ordering of every track
func (s *Sequence) Validate() error {
	if s == nil {
		return errs.InvalidSequence("nil sequence")
	}
	if s.TicksPerQuarter == 0 {
		return errs.InvalidSequence("ticks per quarter note must be positive")
	}
	for i, tr := range s.Tracks {
		for j := 1; j < len(tr); j++ {
			if tr[j].Tick < tr[j-1].Tick {
				return errs.InvalidSequence("track %d event %d at tick %d precedes tick %d", i, j, tr[j].Tick, tr[j-1].Tick)
			}
		}
	}
	return nil
}

// Tempo returns the first tempo found in any track, or DefaultTempo
func (s *Sequence) Tempo() uint32 {
	var best Event
	found := false
	for _, tr := range s.Tracks {
		for _, e := range tr {
			if _, ok := e.TempoMicros(); ok && (!found || e.Tick < best.Tick) {
				best, found = e, true
				break
			}
		}
	}
	if !found {
		return DefaultTempo
	}
	us, _ := best.TempoMicros()
	return us
}

// LastTick returns the latest tick across all tracks
func (s *Sequence) LastTick() int64 {
	var last int64
	for _, tr := range s.Tracks {
		if t := tr.LastTick(); t > last {
			last = t
		}
	}
	return last
}
