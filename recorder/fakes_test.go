package recorder

import (
	"fmt"
	"sync"
	"time"

	"go-stems/capture"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type trackState struct{ muted, solo bool }

// fakeSequencer plays whichever track is soloed for its configured duration
type fakeSequencer struct {
	clock     *fakeClock
	durations []time.Duration
	tracks    []trackState
	running   bool
	startedAt time.Time
	playing   int
	starts    int
	stops     int
	positions []int64
	startErr  error
}

func newFakeSequencer(clock *fakeClock, durations ...time.Duration) *fakeSequencer {
	return &fakeSequencer{clock: clock, durations: durations, tracks: make([]trackState, len(durations))}
}

func (s *fakeSequencer) TrackCount() int { return len(s.tracks) }

func (s *fakeSequencer) SetTrackMute(i int, m bool) { s.tracks[i].muted = m }

func (s *fakeSequencer) SetTrackSolo(i int, v bool) { s.tracks[i].solo = v }

func (s *fakeSequencer) SetPosition(tick int64) { s.positions = append(s.positions, tick) }

func (s *fakeSequencer) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.starts++
	s.running = true
	s.startedAt = s.clock.Now()
	s.playing = -1
	for i, t := range s.tracks {
		if t.solo && !t.muted {
			s.playing = i
		}
	}
	return nil
}

func (s *fakeSequencer) Stop() {
	s.stops++
	s.running = false
}

func (s *fakeSequencer) IsRunning() bool {
	if s.running && s.playing >= 0 && !s.clock.Now().Before(s.startedAt.Add(s.durations[s.playing])) {
		s.running = false
	}
	return s.running
}

// isolated reports whether only track i is audible
func (s *fakeSequencer) isolated(i int) error {
	for j, t := range s.tracks {
		if j == i && (t.muted || !t.solo) {
			return fmt.Errorf("track %d not isolated: %+v", i, t)
		}
		if j != i && (!t.muted || t.solo) {
			return fmt.Errorf("track %d audible while recording %d: %+v", j, i, t)
		}
	}
	return nil
}

// fakeLine produces rate bytes per second of fake clock time
type fakeLine struct {
	clock     *fakeClock
	rate      int64
	startedAt time.Time
	started   bool
	consumed  int64
	stopped   bool
	closed    bool
	onRead    func()
	readErr   error

	stalled   chan struct{} // closed on the first Read, which then blocks until Interrupt
	stallOnce sync.Once
	wake      chan struct{}
	wakeOnce  sync.Once
}

func (l *fakeLine) produced() int64 {
	if !l.started {
		return 0
	}
	return int64(l.clock.Now().Sub(l.startedAt)) * l.rate / int64(time.Second)
}

func (l *fakeLine) Start() error {
	l.started = true
	l.startedAt = l.clock.Now()
	return nil
}

func (l *fakeLine) Stop() error {
	l.stopped = true
	return nil
}

func (l *fakeLine) Close() error {
	l.closed = true
	return nil
}

func (l *fakeLine) Read(p []byte) (int, error) {
	if l.onRead != nil {
		l.onRead()
	}
	if l.readErr != nil {
		return 0, l.readErr
	}
	if l.stalled != nil {
		l.stallOnce.Do(func() { close(l.stalled) })
		<-l.wake
		return 0, fmt.Errorf("capture interrupted")
	}
	if need := l.consumed + int64(len(p)) - l.produced(); need > 0 {
		ns := (need*int64(time.Second) + l.rate - 1) / l.rate
		l.clock.Sleep(time.Duration(ns))
	}
	for i := range p {
		p[i] = byte(l.consumed + int64(i))
	}
	l.consumed += int64(len(p))
	return len(p), nil
}

func (l *fakeLine) Interrupt() {
	l.wakeOnce.Do(func() { close(l.wake) })
}

func (l *fakeLine) Available() int {
	return int(l.produced() - l.consumed)
}

type fakeOpener struct {
	clock   *fakeClock
	rate    int64
	lines   []*fakeLine
	failOn  map[int]error // by open count
	onRead  func(track int)
	readErr error
	stalled chan struct{}
}

func (o *fakeOpener) OpenLine(format capture.Format, bufferBytes int) (capture.Line, error) {
	track := len(o.lines)
	if err := o.failOn[track]; err != nil {
		o.lines = append(o.lines, nil)
		return nil, err
	}
	for _, l := range o.lines {
		if l != nil && !l.closed {
			return nil, fmt.Errorf("line opened while another is open")
		}
	}
	l := &fakeLine{clock: o.clock, rate: o.rate, readErr: o.readErr, stalled: o.stalled, wake: make(chan struct{})}
	if o.onRead != nil {
		l.onRead = func() { o.onRead(track) }
	}
	o.lines = append(o.lines, l)
	return l, nil
}

type written struct {
	name   string
	data   []byte
	format capture.Format
}

type fakePersister struct {
	files  []written
	failOn map[int]error
}

func (p *fakePersister) Name(track int) string {
	return fmt.Sprintf("recording_%d.wav", track)
}

func (p *fakePersister) Write(buf *capture.Buffer, format capture.Format, dest string) error {
	for track, err := range p.failOn {
		if dest == p.Name(track) {
			return err
		}
	}
	p.files = append(p.files, written{name: dest, data: append([]byte(nil), buf.Bytes()...), format: format})
	return nil
}
