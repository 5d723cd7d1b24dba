package capture

import (
	"strings"

	"go-stems/errs"
)

// Line is an open audio input. Read blocks until p is full;
// Available reports how many bytes Read can return without blocking.
type Line interface {
	Start() error
	Stop() error
	Close() error
	Read(p []byte) (int, error)
	Available() int
}

// Interrupter is a Line whose blocked Read can be woken from another
// goroutine. After Interrupt, Read returns an error instead of waiting.
type Interrupter interface {
	Interrupt()
}

// Opener opens a capture line on a selected device
type Opener interface {
	OpenLine(format Format, bufferBytes int) (Line, error)
}

// Device is an input device as advertised by a backend
type Device struct {
	Name        string
	HostAPI     string
	MaxChannels int
	Default     bool
}

// MatchDevice picks the first device whose name contains substr,
// case-insensitively. An empty substr selects the default device.
func MatchDevice(devices []Device, substr string) (int, error) {
	want := strings.ToLower(substr)
	for i, d := range devices {
		if want == "" {
			if d.Default {
				return i, nil
			}
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), want) {
			return i, nil
		}
	}
	if want == "" && len(devices) > 0 {
		return 0, nil
	}
	return -1, errs.DeviceUnavailable(nil, "no capture device matching %q among %d devices", substr, len(devices))
}
