package cmd

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"go-stems/capture"
	"go-stems/config"
)

// backend is a capture API that can list and open input lines
type backend interface {
	capture.Opener
	Devices() ([]capture.Device, error)
	Close() error
}

func openBackend(name, device string, l *zap.Logger) (backend, error) {
	if name == config.BackendMalgo {
		m, err := capture.NewMalgo(device, l)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	p, err := capture.NewPortAudio(device, l)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// applyPositional reads [interface] [port] [mixer] after the input file
func applyPositional(c *config.Config, args []string) error {
	if len(args) > 0 {
		c.Playback.Interface = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.WithHint(errors.Newf("port %q is not a number", args[1]),
				"run `go-stems ports` to list the midi outputs")
		}
		c.Playback.Port = port
	}
	if len(args) > 2 {
		c.Capture.Device = args[2]
	}
	return nil
}

// targetFlags override the playback and capture sections of the config
type targetFlags struct {
	iface   string
	port    int
	device  string
	backend string
}

func (t *targetFlags) register(fs *pflag.FlagSet, withCapture bool) {
	fs.StringVar(&t.iface, "interface", "", "midi output interface name substring")
	fs.IntVar(&t.port, "port", 1, "midi output port number, -1 matches on interface only")
	if withCapture {
		fs.StringVar(&t.device, "device", "", "audio input device name substring")
		fs.StringVar(&t.backend, "backend", config.BackendPortAudio, "capture backend: portaudio or malgo")
	}
}

func (t *targetFlags) apply(fs *pflag.FlagSet, c *config.Config) {
	if fs.Changed("interface") {
		c.Playback.Interface = t.iface
	}
	if fs.Changed("port") {
		c.Playback.Port = t.port
	}
	if fs.Changed("device") {
		c.Capture.Device = t.device
	}
	if fs.Changed("backend") {
		c.Capture.Backend = t.backend
	}
}
