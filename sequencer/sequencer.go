// Package sequencer plays a multi-track Sequence to a MIDI output with
// per-track mute and solo.
package sequencer

import (
	"runtime"
	"sort"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"go-stems/debug"
	"go-stems/errs"
	"go-stems/midi"
)

// Sender delivers one message to the playback output
type Sender func(gomidi.Message) error

type noteKey struct {
	channel, pitch uint8
}

type scheduled struct {
	at    time.Duration // from tick 0
	track int
	event midi.Event
}

// Sequencer plays the tracks of one Sequence from a start position
type Sequencer struct {
	seq    *midi.Sequence
	send   Sender
	tempo  tempoMap
	logger *zap.Logger

	mu       sync.RWMutex // RWMutex for concurrent reads in outputLoop
	tracks   []TrackState
	position int64
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	sounding map[noteKey]int // note -> track that started it
	sendErrs int
}

// Option configures a Sequencer
type Option func(*Sequencer)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a stopped sequencer positioned at tick 0
func New(seq *midi.Sequence, send Sender, opts ...Option) *Sequencer {
	s := &Sequencer{
		seq:      seq,
		send:     send,
		tempo:    newTempoMap(seq),
		logger:   zap.NewNop(),
		tracks:   make([]TrackState, len(seq.Tracks)),
		sounding: make(map[noteKey]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("sequencer")
	return s
}

// TrackCount returns the number of tracks
func (s *Sequencer) TrackCount() int {
	return len(s.tracks)
}

// SetTrackMute mutes or unmutes a track. Out of range indexes are ignored.
func (s *Sequencer) SetTrackMute(track int, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if track >= 0 && track < len(s.tracks) {
		s.tracks[track].Muted = muted
	}
}

// SetTrackSolo solos or unsolos a track. Out of range indexes are ignored.
func (s *Sequencer) SetTrackSolo(track int, solo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if track >= 0 && track < len(s.tracks) {
		s.tracks[track].Solo = solo
	}
}

// Track returns the mute and solo state of a track
func (s *Sequencer) Track(track int) TrackState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if track < 0 || track >= len(s.tracks) {
		return TrackState{}
	}
	return s.tracks[track]
}

// Audible reports whether a track's events currently reach the output
func (s *Sequencer) Audible(track int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return audible(s.tracks, track)
}

// SetPosition sets the tick the next Start plays from
func (s *Sequencer) SetPosition(tick int64) {
	if tick < 0 {
		tick = 0
	}
	s.mu.Lock()
	s.position = tick
	s.mu.Unlock()
}

// Position returns the start tick of the next or current run
func (s *Sequencer) Position() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Duration returns the play time from tick 0 to the last event
func (s *Sequencer) Duration() time.Duration {
	return s.tempo.Duration(s.seq.LastTick())
}

// IsRunning reports whether events remain to be dispatched
func (s *Sequencer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Start begins playback from the current position. It is a no-op while running.
func (s *Sequencer) Start() error {
	if s.send == nil {
		return errs.DeviceUnavailable(nil, "sequencer has no playback output")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	timeline := s.timeline(s.position)
	t0 := time.Now().Add(-s.tempo.Duration(s.position))
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.logger.Debug("start",
		zap.Int64("position", s.position),
		zap.Int("events", len(timeline)))

	go s.outputLoop(timeline, t0, s.stopChan, s.done)
	return nil
}

// Stop halts playback and silences every note still sounding, including
// notes left on by a sequence that already played to its end.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.silence()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	s.silence()
}

// timeline merges every channel event at or after from into dispatch order
func (s *Sequencer) timeline(from int64) []scheduled {
	var out []scheduled
	for i, tr := range s.seq.Tracks {
		for _, e := range tr {
			if e.Tick < from || e.Kind == midi.KindMeta || len(e.Payload) == 0 {
				continue
			}
			out = append(out, scheduled{at: s.tempo.Duration(e.Tick), track: i, event: e})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].event.Tick != out[b].event.Tick {
			return out[a].event.Tick < out[b].event.Tick
		}
		return out[a].track < out[b].track
	})
	return out
}

// outputLoop sends each event at its due time
func (s *Sequencer) outputLoop(timeline []scheduled, t0 time.Time, stop <-chan struct{}, done chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	for _, ev := range timeline {
		select {
		case <-stop:
			return
		default:
		}

		if wait := time.Until(t0.Add(ev.at)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
				// Ready
			}
		}

		s.dispatch(ev)
	}
}

func (s *Sequencer) dispatch(ev scheduled) {
	e := ev.event
	key := noteKey{e.Channel, e.Pitch}

	s.mu.Lock()
	on := audible(s.tracks, ev.track)
	if e.IsNote() && len(e.Payload) >= 3 {
		owner, sounding := s.sounding[key]
		switch {
		case e.Sounding():
			if !on {
				s.mu.Unlock()
				return
			}
			s.sounding[key] = ev.track
		case sounding && owner == ev.track:
			// release notes started before a mute change
			delete(s.sounding, key)
			on = true
		}
	}
	s.mu.Unlock()

	if !on {
		return
	}
	if err := s.send(gomidi.Message(e.Payload)); err != nil {
		s.mu.Lock()
		s.sendErrs++
		n := s.sendErrs
		s.mu.Unlock()
		if n == 1 {
			s.logger.Warn("send failed", zap.Error(err), zap.Int("track", ev.track))
		}
		return
	}
	debug.Log("dispatch", "track=%d tick=%d %s", ev.track, e.Tick, e.Kind)
}

// silence sends a note off for every note left sounding
func (s *Sequencer) silence() {
	s.mu.Lock()
	notes := s.sounding
	s.sounding = make(map[noteKey]int)
	s.mu.Unlock()

	for k := range notes {
		if err := s.send(gomidi.NoteOff(k.channel, k.pitch)); err != nil {
			s.logger.Warn("note off failed", zap.Error(err), zap.Uint8("pitch", k.pitch))
		}
	}
}
