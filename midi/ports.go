package midi

import (
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-stems/errs"
)

// ScanTimeout bounds port enumeration (CoreMIDI can hang)
const ScanTimeout = 3 * time.Second

// Sender delivers one message to a playback target
type Sender func(gomidi.Message) error

// Target is an open MIDI output
type Target struct {
	Name string
	Send Sender

	port drivers.Out
}

// Close releases the output port
func (t *Target) Close() error {
	if t == nil || t.port == nil {
		return nil
	}
	return t.port.Close()
}

// OutPorts lists output ports, giving up after ScanTimeout
func OutPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(ScanTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, errs.DeviceUnavailable(nil, "midi port scan timed out after %s", ScanTimeout)
	}
}

// OutPortNames lists output port names
func OutPortNames() ([]string, error) {
	ports, err := OutPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names, nil
}

// MatchPort returns the index of the first name containing both the
// interface substring and the port number, case-insensitively.
// A negative port matches on the interface alone.
func MatchPort(names []string, iface string, port int) (int, error) {
	want := strings.ToLower(iface)
	num := ""
	if port >= 0 {
		num = strconv.Itoa(port)
	}
	for i, name := range names {
		lower := strings.ToLower(name)
		if strings.Contains(lower, want) && strings.Contains(lower, num) {
			return i, nil
		}
	}
	return -1, errs.DeviceUnavailable(nil, "no midi output matching interface %q port %d among %d ports", iface, port, len(names))
}

// OpenPlaybackTarget opens the first output port matching iface and port
func OpenPlaybackTarget(iface string, port int) (*Target, error) {
	ports, err := OutPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	idx, err := MatchPort(names, iface, port)
	if err != nil {
		return nil, err
	}
	out := ports[idx]
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, errs.DeviceUnavailable(err, "open midi output %s", out.String())
	}
	return &Target{Name: out.String(), Send: send, port: out}, nil
}

// CloseDriver shuts the MIDI driver down
func CloseDriver() {
	gomidi.CloseDriver()
}
