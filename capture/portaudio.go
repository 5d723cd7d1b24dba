package capture

import (
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"go-stems/debug"
	"go-stems/errs"
)

// framesPerRead is the portaudio host buffer; Available reports whole multiples of it
const framesPerRead = 256

// PortAudio opens blocking capture streams through PortAudio
type PortAudio struct {
	device string
	logger *zap.Logger
}

// NewPortAudio initializes PortAudio. device selects an input by name substring.
func NewPortAudio(device string, logger *zap.Logger) (*PortAudio, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, errs.DeviceUnavailable(err, "initialize portaudio")
	}
	return &PortAudio{device: device, logger: logger.Named("portaudio")}, nil
}

// Close terminates PortAudio
func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}

func (p *PortAudio) inputs() ([]Device, []*portaudio.DeviceInfo, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, nil, errs.DeviceUnavailable(err, "list portaudio devices")
	}
	def, _ := portaudio.DefaultInputDevice()

	var devices []Device
	var infos []*portaudio.DeviceInfo
	for _, info := range all {
		if info.MaxInputChannels <= 0 {
			continue
		}
		d := Device{
			Name:        info.Name,
			MaxChannels: info.MaxInputChannels,
			Default:     def != nil && def.Name == info.Name,
		}
		if info.HostApi != nil {
			d.HostAPI = info.HostApi.Name
		}
		devices = append(devices, d)
		infos = append(infos, info)
	}
	return devices, infos, nil
}

// Devices lists input devices
func (p *PortAudio) Devices() ([]Device, error) {
	devices, _, err := p.inputs()
	return devices, err
}

// OpenLine opens, but does not start, a blocking input stream
func (p *PortAudio) OpenLine(format Format, bufferBytes int) (Line, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if format.BitDepth != 16 || !format.Signed {
		return nil, errs.DeviceUnavailable(nil, "portaudio backend reads signed 16-bit only, got %d-bit", format.BitDepth)
	}

	devices, infos, err := p.inputs()
	if err != nil {
		return nil, err
	}
	idx, err := MatchDevice(devices, p.device)
	if err != nil {
		return nil, err
	}
	info := infos[idx]
	if info.MaxInputChannels < format.Channels {
		return nil, errs.DeviceUnavailable(nil, "%s has %d input channels, need %d", info.Name, info.MaxInputChannels, format.Channels)
	}

	params := portaudio.HighLatencyParameters(info, nil)
	params.Input.Channels = format.Channels
	params.SampleRate = float64(format.SampleRate)
	params.FramesPerBuffer = framesPerRead
	if d := format.DurationOf(bufferBytes); d > params.Input.Latency {
		params.Input.Latency = d
	}

	samples := make([]int16, framesPerRead*format.Channels)
	stream, err := portaudio.OpenStream(params, samples)
	if err != nil {
		return nil, errs.DeviceUnavailable(err, "open capture stream on %s", info.Name)
	}

	p.logger.Info("capture line open",
		zap.String("device", info.Name),
		zap.Int("channels", format.Channels),
		zap.Int("rate", format.SampleRate),
		zap.Duration("latency", params.Input.Latency))

	return &portAudioLine{
		stream:  stream,
		samples: samples,
		chunk:   make([]byte, 2*len(samples)),
		format:  format,
		logger:  p.logger,
	}, nil
}

type portAudioLine struct {
	stream  *portaudio.Stream
	samples []int16
	chunk   []byte
	pending []byte // unread tail of chunk
	format  Format
	logger  *zap.Logger

	overflows int
	closeOnce sync.Once
	closeErr  error
}

func (l *portAudioLine) Start() error {
	if err := l.stream.Start(); err != nil {
		return errs.DeviceUnavailable(err, "start capture stream")
	}
	return nil
}

func (l *portAudioLine) Stop() error {
	if err := l.stream.Stop(); err != nil {
		return errs.DeviceUnavailable(err, "stop capture stream")
	}
	l.pending = nil
	return nil
}

func (l *portAudioLine) Close() error {
	l.closeOnce.Do(func() {
		if err := l.stream.Close(); err != nil {
			l.closeErr = errs.DeviceUnavailable(err, "close capture stream")
		}
		if l.overflows > 0 {
			l.logger.Warn("capture overflowed", zap.Int("reads", l.overflows))
		}
	})
	return l.closeErr
}

func (l *portAudioLine) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(l.pending) == 0 {
			if err := l.fill(); err != nil {
				return n, err
			}
		}
		c := copy(p[n:], l.pending)
		l.pending = l.pending[c:]
		n += c
	}
	return n, nil
}

func (l *portAudioLine) fill() error {
	err := l.stream.Read()
	if err == portaudio.InputOverflowed {
		// data is still delivered, earlier frames were lost
		l.overflows++
		debug.LogEvery(100, "capture", "input overflowed (%d so far)", l.overflows)
	} else if err != nil {
		return errs.DeviceUnavailable(err, "read capture stream")
	}
	putInt16s(l.chunk, l.samples, l.format.BigEndian)
	l.pending = l.chunk
	return nil
}

func (l *portAudioLine) Available() int {
	frames, err := l.stream.AvailableToRead()
	if err != nil || frames < 0 {
		return len(l.pending)
	}
	whole := frames / framesPerRead
	return len(l.pending) + whole*len(l.chunk)
}
