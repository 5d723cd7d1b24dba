// Package stems writes captured buffers to one WAV file per track.
package stems

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"go-stems/capture"
	"go-stems/errs"
)

// DefaultPrefix names files recording_0.wav, recording_1.wav, ...
const DefaultPrefix = "recording_"

// framesPerBlock bounds the int buffer handed to the encoder
const framesPerBlock = 4096

// wavPCM is the WAVE format tag for integer PCM
const wavPCM = 1

// Writer persists one WAV file per track under Dir
type Writer struct {
	Dir    string
	Prefix string
	Logger *zap.Logger
}

// NewWriter returns a Writer for dir with the default prefix
func NewWriter(dir string, logger *zap.Logger) *Writer {
	return &Writer{Dir: dir, Prefix: DefaultPrefix, Logger: logger}
}

// Name is the destination file for a track index
func (w *Writer) Name(track int) string {
	prefix := w.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return filepath.Join(w.Dir, prefix+strconv.Itoa(track)+".wav")
}

// Write encodes buf as PCM WAV at dest. A trailing partial frame is dropped.
func (w *Writer) Write(buf *capture.Buffer, format capture.Format, dest string) error {
	if err := format.Validate(); err != nil {
		return errs.IO(err, "write %s", dest)
	}
	f, err := os.Create(dest)
	if err != nil {
		return errs.IO(err, "create %s", dest)
	}

	frames, err := encode(f, buf.Bytes(), format)
	if err != nil {
		f.Close()
		return errs.IO(err, "encode %s", dest)
	}
	if err := f.Close(); err != nil {
		return errs.IO(err, "close %s", dest)
	}

	if w.Logger != nil {
		w.Logger.Info("stem written",
			zap.String("path", dest),
			zap.Int("frames", frames),
			zap.Duration("length", format.DurationOf(frames*format.FrameSize())))
	}
	return nil
}

func encode(f *os.File, raw []byte, format capture.Format) (int, error) {
	enc := wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, wavPCM)

	frameSize := format.FrameSize()
	sampleSize := format.SampleSize()
	frames := len(raw) / frameSize

	block := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           make([]int, 0, framesPerBlock*format.Channels),
		SourceBitDepth: format.BitDepth,
	}

	for start := 0; start < frames; start += framesPerBlock {
		end := start + framesPerBlock
		if end > frames {
			end = frames
		}
		block.Data = block.Data[:0]
		for off := start * frameSize; off < end*frameSize; off += sampleSize {
			v := format.Sample(raw[off:])
			if format.BitDepth == 8 {
				// 8-bit WAV samples are unsigned
				v += 128
			}
			block.Data = append(block.Data, v)
		}
		if err := enc.Write(block); err != nil {
			return 0, err
		}
	}

	if err := enc.Close(); err != nil {
		return 0, err
	}
	return frames, nil
}
