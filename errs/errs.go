// Package errs holds the error kinds shared by the splitter, the capture
// layer and the record orchestrator.
package errs

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Test with errors.Is.
var (
	ErrMalformedEvent    = errors.New("malformed event")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrIO                = errors.New("io error")
	ErrInvalidSequence   = errors.New("invalid sequence")
	ErrCancelled         = errors.New("cancelled")
)

// MalformedEvent reports a note event whose payload is too short to carry a pitch
func MalformedEvent(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedEvent)
}

// InvalidSequence reports a sequence that cannot be split or played
func InvalidSequence(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidSequence)
}

// DeviceUnavailable wraps a MIDI or capture device failure. cause may be nil.
func DeviceUnavailable(cause error, format string, args ...interface{}) error {
	return errors.Mark(wrap(cause, format, args...), ErrDeviceUnavailable)
}

// IO wraps a file or stream failure. cause may be nil.
func IO(cause error, format string, args ...interface{}) error {
	return errors.Mark(wrap(cause, format, args...), ErrIO)
}

// Cancelled wraps a context error so callers can tell a stop request from a failure.
func Cancelled(cause error) error {
	return errors.Mark(wrap(cause, "run cancelled"), ErrCancelled)
}

func wrap(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Newf(format, args...)
	}
	return errors.Wrapf(cause, format, args...)
}

// KindOf names the error kind of err, or "" when it carries none
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrMalformedEvent):
		return "malformed-event"
	case errors.Is(err, ErrInvalidSequence):
		return "invalid-sequence"
	case errors.Is(err, ErrDeviceUnavailable):
		return "device-unavailable"
	case errors.Is(err, ErrIO):
		return "io"
	}
	return ""
}

// Hints returns the user-facing hints attached anywhere in err's chain
func Hints(err error) string {
	return errors.FlattenHints(err)
}
