package recorder

import (
	"time"

	"go-stems/capture"
)

// session is the state of one track iteration
type session struct {
	track      int
	phase      Phase
	buf        *capture.Buffer
	chunk      []byte
	clock      Clock
	phaseStart time.Time
	lastReport time.Time
}

func newSession(track int, cfg Config, clock Clock) *session {
	return &session{
		track: track,
		phase: PhaseIdle,
		buf:   capture.NewBuffer(cfg.InitialBufferBytes),
		chunk: make([]byte, cfg.ChunkBytes),
		clock: clock,
	}
}

func (s *session) enter(p Phase) {
	s.phase = p
	s.phaseStart = s.clock.Now()
	s.lastReport = s.phaseStart
}

func (s *session) elapsed() time.Duration {
	return s.clock.Now().Sub(s.phaseStart)
}

// due reports whether a periodic progress update is owed
func (s *session) due(every time.Duration) bool {
	now := s.clock.Now()
	if now.Sub(s.lastReport) < every {
		return false
	}
	s.lastReport = now
	return true
}
