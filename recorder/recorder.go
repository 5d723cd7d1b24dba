// Package recorder drives the per-track capture run: isolate the track,
// pre-roll the capture line, play the track, capture the tail, persist.
package recorder

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"go-stems/capture"
	"go-stems/debug"
	"go-stems/errs"
)

// Sequencer is the playback control the orchestrator needs
type Sequencer interface {
	TrackCount() int
	SetTrackMute(track int, muted bool)
	SetTrackSolo(track int, solo bool)
	SetPosition(tick int64)
	Start() error
	Stop()
	IsRunning() bool
}

// Persister stores a finished capture under a name derived from the track index
type Persister interface {
	Name(track int) string
	Write(buf *capture.Buffer, format capture.Format, dest string) error
}

// Config holds the capture windows and read sizes
type Config struct {
	Format             capture.Format
	PreRoll            time.Duration
	Tail               time.Duration
	PollInterval       time.Duration // sleep when the line has nothing buffered
	ChunkBytes         int           // fixed read size for pre-roll and tail, upper bound while playing
	LineBufferBytes    int
	InitialBufferBytes int
	ReportInterval     time.Duration // byte count updates to the observer
}

// DefaultConfig returns 2s pre-roll and 10s tail at CDAudio
func DefaultConfig() Config {
	return Config{
		Format:             capture.CDAudio,
		PreRoll:            2000 * time.Millisecond,
		Tail:               10000 * time.Millisecond,
		PollInterval:       time.Millisecond,
		ChunkBytes:         8192,
		LineBufferBytes:    8192,
		InitialBufferBytes: capture.DefaultCapacity,
		ReportInterval:     250 * time.Millisecond,
	}
}

// Progress is published on every phase change and periodically while capturing
type Progress struct {
	Track      int
	TrackCount int
	Phase      Phase
	Bytes      int
	Path       string
	Err        error
	Update     bool // byte count refresh within the same phase
}

// TrackResult is the outcome of one track iteration
type TrackResult struct {
	Track    int
	Path     string
	Bytes    int
	Duration time.Duration
	Err      error
}

// Report lists every track attempted in a run
type Report struct {
	RunID  string
	Tracks []TrackResult
}

// Failed returns the tracks that ended with an error
func (r Report) Failed() []TrackResult {
	var out []TrackResult
	for _, t := range r.Tracks {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// Orchestrator records every track of a sequencer in turn
type Orchestrator struct {
	cfg      Config
	seq      Sequencer
	lines    capture.Opener
	out      Persister
	clock    Clock
	logger   *zap.Logger
	observer func(Progress)
	runID    string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver receives progress synchronously from the run loop; it must not block
func WithObserver(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithRunID tags logs and the report
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// New creates an orchestrator. Zero config fields take their defaults,
// except the pre-roll and tail windows which may be zero.
func New(cfg Config, seq Sequencer, lines capture.Opener, out Persister, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.Format == (capture.Format{}) {
		cfg.Format = def.Format
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = def.ChunkBytes
	}
	if cfg.LineBufferBytes <= 0 {
		cfg.LineBufferBytes = def.LineBufferBytes
	}
	if cfg.InitialBufferBytes <= 0 {
		cfg.InitialBufferBytes = def.InitialBufferBytes
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = def.ReportInterval
	}

	o := &Orchestrator{
		cfg:    cfg,
		seq:    seq,
		lines:  lines,
		out:    out,
		clock:  WallClock,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("recorder")
	if o.runID != "" {
		o.logger = o.logger.With(zap.String("run", o.runID))
	}
	return o
}

// Run records tracks 0..TrackCount-1. A capture device failure or
// cancellation aborts the run; a failed write is recorded in the report and
// the next track proceeds. Files already written are left in place.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: o.runID}
	n := o.seq.TrackCount()
	o.logger.Info("run start",
		zap.Int("tracks", n),
		zap.Duration("preRoll", o.cfg.PreRoll),
		zap.Duration("tail", o.cfg.Tail))

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return report, errs.Cancelled(err)
		}
		res, err := o.record(ctx, i, n)
		report.Tracks = append(report.Tracks, res)
		if err != nil {
			o.logger.Error("run aborted", zap.Int("track", i), zap.String("kind", errs.KindOf(err)), zap.Error(err))
			return report, err
		}
	}

	o.publish(Progress{Track: n - 1, TrackCount: n, Phase: PhaseDone})
	o.logger.Info("run done", zap.Int("tracks", n), zap.Int("failed", len(report.Failed())))
	return report, nil
}

// record runs one track. The returned error is fatal for the run; a write
// failure is only set on the result.
func (o *Orchestrator) record(ctx context.Context, track, count int) (TrackResult, error) {
	res := TrackResult{Track: track}
	s := newSession(track, o.cfg, o.clock)
	log := o.logger.With(zap.Int("track", track))

	o.isolate(track, count)
	s.enter(PhaseIsolated)
	o.report(s, count, false)

	line, err := o.lines.OpenLine(o.cfg.Format, o.cfg.LineBufferBytes)
	if err != nil {
		o.restore(track)
		res.Err = errors.WithHint(errs.DeviceUnavailable(err, "open capture line for track %d", track),
			"run `go-stems ports` to list capture devices")
		return res, res.Err
	}

	capErr := o.capture(ctx, s, line)

	o.restore(track)
	stopErr := line.Stop()
	closeErr := line.Close()
	res.Bytes = s.buf.Len()
	if capErr != nil {
		res.Err = capErr
		return res, capErr
	}
	if err := errors.CombineErrors(stopErr, closeErr); err != nil {
		res.Err = errs.DeviceUnavailable(err, "release capture line for track %d", track)
		return res, res.Err
	}

	res.Path = o.out.Name(track)
	res.Duration = o.cfg.Format.DurationOf(res.Bytes)
	if err := o.out.Write(s.buf, o.cfg.Format, res.Path); err != nil {
		res.Err = errs.IO(err, "persist track %d", track)
		log.Error("persist failed, continuing", zap.String("path", res.Path), zap.Error(err))
	} else {
		log.Info("track persisted", zap.String("path", res.Path), zap.Int("bytes", res.Bytes), zap.Duration("length", res.Duration))
	}
	s.buf.Release()

	s.enter(PhasePersisted)
	o.publish(Progress{Track: track, TrackCount: count, Phase: PhasePersisted, Bytes: res.Bytes, Path: res.Path, Err: res.Err})
	return res, nil
}

// isolate leaves only track audible
func (o *Orchestrator) isolate(track, count int) {
	for i := 0; i < count; i++ {
		o.seq.SetTrackMute(i, true)
		o.seq.SetTrackSolo(i, false)
	}
	o.seq.SetTrackMute(track, false)
	o.seq.SetTrackSolo(track, true)
}

// restore re-mutes track and halts playback
func (o *Orchestrator) restore(track int) {
	o.seq.SetTrackMute(track, true)
	o.seq.SetTrackSolo(track, false)
	o.seq.Stop()
}

func (o *Orchestrator) capture(ctx context.Context, s *session, line capture.Line) error {
	if err := line.Start(); err != nil {
		return errs.DeviceUnavailable(err, "start capture line")
	}
	if in, ok := line.(capture.Interrupter); ok {
		stop := context.AfterFunc(ctx, in.Interrupt)
		defer stop()
	}

	s.enter(PhasePreRoll)
	o.report(s, 0, false)
	for s.elapsed() < o.cfg.PreRoll {
		if err := ctx.Err(); err != nil {
			return errs.Cancelled(err)
		}
		if err := o.readChunk(s, line); err != nil {
			return interrupted(ctx, err)
		}
	}
	o.seq.SetPosition(0)

	if err := o.seq.Start(); err != nil {
		return errs.DeviceUnavailable(err, "start playback")
	}
	s.enter(PhasePlaying)
	o.report(s, 0, false)
	for o.seq.IsRunning() {
		if err := ctx.Err(); err != nil {
			return errs.Cancelled(err)
		}
		if err := o.readAvailable(s, line); err != nil {
			return interrupted(ctx, err)
		}
	}

	s.enter(PhaseTailCapture)
	o.report(s, 0, false)
	for s.elapsed() < o.cfg.Tail {
		if err := ctx.Err(); err != nil {
			return errs.Cancelled(err)
		}
		if err := o.readChunk(s, line); err != nil {
			return interrupted(ctx, err)
		}
	}
	return nil
}

// interrupted reports a read that failed because ctx ended as a cancellation
func interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Cancelled(ctx.Err())
	}
	return err
}

// readChunk blocks for one full chunk
func (o *Orchestrator) readChunk(s *session, line capture.Line) error {
	n, err := line.Read(s.chunk)
	s.buf.Append(s.chunk[:n])
	if err != nil {
		return errs.DeviceUnavailable(err, "read capture line in %s", s.phase)
	}
	o.tick(s)
	return nil
}

// readAvailable takes what the line holds without blocking, or sleeps one poll interval
func (o *Orchestrator) readAvailable(s *session, line capture.Line) error {
	avail := line.Available()
	if avail <= 0 {
		o.clock.Sleep(o.cfg.PollInterval)
		return nil
	}
	if avail > len(s.chunk) {
		avail = len(s.chunk)
	}
	n, err := line.Read(s.chunk[:avail])
	s.buf.Append(s.chunk[:n])
	if err != nil {
		return errs.DeviceUnavailable(err, "read capture line in %s", s.phase)
	}
	o.tick(s)
	return nil
}

func (o *Orchestrator) tick(s *session) {
	if s.due(o.cfg.ReportInterval) {
		debug.Log("capture", "track=%d phase=%s bytes=%d", s.track, s.phase, s.buf.Len())
		o.report(s, 0, true)
	}
}

func (o *Orchestrator) report(s *session, count int, update bool) {
	if count == 0 {
		count = o.seq.TrackCount()
	}
	o.publish(Progress{Track: s.track, TrackCount: count, Phase: s.phase, Bytes: s.buf.Len(), Update: update})
}

func (o *Orchestrator) publish(p Progress) {
	if o.observer != nil {
		o.observer(p)
	}
}
