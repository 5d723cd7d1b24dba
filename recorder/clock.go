package recorder

import "time"

// Clock measures phase durations and suspends the empty-read poll
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type wallClock struct{}

func (wallClock) Now() time.Time        { return time.Now() }
func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }

// WallClock is the real time clock
var WallClock Clock = wallClock{}
