package capture

import (
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"go-stems/debug"
	"go-stems/errs"
)

// ringSeconds sizes the callback ring relative to the format's data rate
const ringSeconds = 2

// Malgo opens callback-driven capture devices through miniaudio
type Malgo struct {
	device string
	ctx    *malgo.AllocatedContext
	logger *zap.Logger
}

// NewMalgo initializes a miniaudio context. device selects an input by name substring.
func NewMalgo(device string, logger *zap.Logger) (*Malgo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("malgo")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug(message)
	})
	if err != nil {
		return nil, errs.DeviceUnavailable(err, "init miniaudio context")
	}
	return &Malgo{device: device, ctx: ctx, logger: logger}, nil
}

// Close releases the miniaudio context
func (m *Malgo) Close() error {
	if m.ctx == nil {
		return nil
	}
	err := m.ctx.Uninit()
	m.ctx.Free()
	m.ctx = nil
	return err
}

func (m *Malgo) inputs() ([]Device, []malgo.DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, nil, errs.DeviceUnavailable(err, "list capture devices")
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			Name:    info.Name(),
			HostAPI: "miniaudio",
			Default: info.IsDefault != 0,
		}
	}
	return devices, infos, nil
}

// Devices lists input devices
func (m *Malgo) Devices() ([]Device, error) {
	devices, _, err := m.inputs()
	return devices, err
}

func sampleFormat(f Format) (malgo.FormatType, error) {
	if f.BigEndian && f.BitDepth > 8 {
		return malgo.FormatUnknown, errs.DeviceUnavailable(nil, "miniaudio delivers native little-endian samples only")
	}
	switch {
	case f.BitDepth == 8 && !f.Signed:
		return malgo.FormatU8, nil
	case f.BitDepth == 16 && f.Signed:
		return malgo.FormatS16, nil
	case f.BitDepth == 24 && f.Signed:
		return malgo.FormatS24, nil
	case f.BitDepth == 32 && f.Signed:
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, errs.DeviceUnavailable(nil, "miniaudio has no %d-bit signed=%t format", f.BitDepth, f.Signed)
}

// OpenLine initializes, but does not start, a capture device
func (m *Malgo) OpenLine(format Format, bufferBytes int) (Line, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	sf, err := sampleFormat(format)
	if err != nil {
		return nil, err
	}
	devices, infos, err := m.inputs()
	if err != nil {
		return nil, err
	}
	idx, err := MatchDevice(devices, m.device)
	if err != nil {
		return nil, err
	}

	capacity := ringSeconds * format.BytesPerSecond()
	if bufferBytes > capacity {
		capacity = bufferBytes
	}
	l := &malgoLine{ring: newRing(capacity), logger: m.logger}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = sf
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.Capture.DeviceID = infos[idx].ID.Pointer()
	cfg.SampleRate = uint32(format.SampleRate)
	if frames := bufferBytes / format.FrameSize(); frames > 0 {
		cfg.PeriodSizeInFrames = uint32(frames)
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			if over := l.ring.write(in); over > 0 {
				debug.LogEvery(100, "capture", "ring full, overwrote %d bytes", over)
			}
		},
	}
	dev, err := malgo.InitDevice(m.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, errs.DeviceUnavailable(err, "init capture device %s", devices[idx].Name)
	}
	l.device = dev

	m.logger.Info("capture line open",
		zap.String("device", devices[idx].Name),
		zap.Int("channels", format.Channels),
		zap.Int("rate", format.SampleRate),
		zap.Int("ring", capacity))
	return l, nil
}

type malgoLine struct {
	device *malgo.Device
	ring   *ring
	logger *zap.Logger

	closeOnce sync.Once
}

func (l *malgoLine) Start() error {
	l.ring.reset()
	if err := l.device.Start(); err != nil {
		return errs.DeviceUnavailable(err, "start capture device")
	}
	return nil
}

func (l *malgoLine) Stop() error {
	err := l.device.Stop()
	l.ring.close()
	if err != nil {
		return errs.DeviceUnavailable(err, "stop capture device")
	}
	return nil
}

func (l *malgoLine) Close() error {
	l.closeOnce.Do(func() {
		l.ring.close()
		l.device.Uninit()
		if n := l.ring.overwritten(); n > 0 {
			l.logger.Warn("capture ring overwrote samples", zap.Int64("bytes", n))
		}
	})
	return nil
}

// Interrupt wakes a Read waiting on a stalled device
func (l *malgoLine) Interrupt() {
	l.ring.close()
}

func (l *malgoLine) Read(p []byte) (int, error) {
	n, ok := l.ring.read(p)
	if !ok {
		return n, errs.DeviceUnavailable(nil, "capture device stopped after %d of %d bytes", n, len(p))
	}
	return n, nil
}

func (l *malgoLine) Available() int {
	return l.ring.len()
}
