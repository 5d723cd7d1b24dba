package sequencer

import (
	"sort"
	"time"

	"go-stems/midi"
)

type tempoChange struct {
	tick   int64
	micros int64 // per quarter note
	at     time.Duration
}

// tempoMap converts ticks to elapsed time across tempo changes
type tempoMap struct {
	ppq     int64
	changes []tempoChange
}

func newTempoMap(seq *midi.Sequence) tempoMap {
	var changes []tempoChange
	for _, tr := range seq.Tracks {
		for _, e := range tr {
			if us, ok := e.TempoMicros(); ok && us > 0 {
				changes = append(changes, tempoChange{tick: e.Tick, micros: int64(us)})
			}
		}
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })
	if len(changes) == 0 || changes[0].tick > 0 {
		changes = append([]tempoChange{{micros: int64(midi.DefaultTempo)}}, changes...)
	}

	m := tempoMap{ppq: int64(seq.TicksPerQuarter), changes: changes}
	if m.ppq <= 0 {
		m.ppq = 1
	}
	for i := 1; i < len(m.changes); i++ {
		prev := m.changes[i-1]
		m.changes[i].at = prev.at + m.span(m.changes[i].tick-prev.tick, prev.micros)
	}
	return m
}

func (m tempoMap) span(ticks, micros int64) time.Duration {
	return time.Duration(ticks * micros * int64(time.Microsecond) / m.ppq)
}

// Duration returns the time from tick 0 to tick
func (m tempoMap) Duration(tick int64) time.Duration {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].tick > tick }) - 1
	if i < 0 {
		i = 0
	}
	c := m.changes[i]
	return c.at + m.span(tick-c.tick, c.micros)
}
