package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"go-stems/errs"
)

// Capture backends
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
)

// PlaybackConfig selects the MIDI output the split tracks are played on
type PlaybackConfig struct {
	Interface string `json:"interface,omitempty"`
	Port      int    `json:"port"`
}

// CaptureConfig selects the audio input and its read sizes
type CaptureConfig struct {
	Device      string `json:"device,omitempty"`
	Backend     string `json:"backend"`
	BufferBytes int    `json:"bufferBytes"`
	ChunkBytes  int    `json:"chunkBytes"`
}

// RecordingConfig controls the per-track capture windows and output files
type RecordingConfig struct {
	PreRollMs          int    `json:"preRollMs"`
	TailMs             int    `json:"tailMs"`
	PollIntervalMs     int    `json:"pollIntervalMs"`
	OutputDir          string `json:"outputDir"`
	FilePrefix         string `json:"filePrefix"`
	InitialBufferBytes int    `json:"initialBufferBytes"`
}

// LogConfig stores logging preferences
type LogConfig struct {
	DebugFile bool `json:"debugFile,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Playback  PlaybackConfig  `json:"playback"`
	Capture   CaptureConfig   `json:"capture"`
	Recording RecordingConfig `json:"recording"`
	Log       LogConfig       `json:"log,omitempty"`
	UI        UIConfig        `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Playback: PlaybackConfig{
			Port: 1,
		},
		Capture: CaptureConfig{
			Backend:     BackendPortAudio,
			BufferBytes: 8192,
			ChunkBytes:  8192,
		},
		Recording: RecordingConfig{
			PreRollMs:          2000,
			TailMs:             10000,
			PollIntervalMs:     1,
			OutputDir:          ".",
			FilePrefix:         "recording_",
			InitialBufferBytes: 16 << 20,
		},
	}
}

// PreRoll is the capture window before playback starts
func (r RecordingConfig) PreRoll() time.Duration {
	return time.Duration(r.PreRollMs) * time.Millisecond
}

// Tail is the capture window after playback ends
func (r RecordingConfig) Tail() time.Duration {
	return time.Duration(r.TailMs) * time.Millisecond
}

// PollInterval is the sleep between empty reads while playing
func (r RecordingConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMs) * time.Millisecond
}

// Validate rejects values the recorder cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Capture.Backend != BackendPortAudio && c.Capture.Backend != BackendMalgo:
		return errors.Newf("capture.backend %q must be %q or %q", c.Capture.Backend, BackendPortAudio, BackendMalgo)
	case c.Capture.ChunkBytes <= 0 || c.Capture.BufferBytes <= 0:
		return errors.Newf("capture.chunkBytes and capture.bufferBytes must be positive")
	case c.Recording.PreRollMs < 0 || c.Recording.TailMs < 0:
		return errors.Newf("recording durations must not be negative")
	case c.Recording.PollIntervalMs < 1:
		return errors.Newf("recording.pollIntervalMs must be at least 1")
	case c.Recording.FilePrefix == "":
		return errors.Newf("recording.filePrefix must not be empty")
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-stems"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, so missing fields keep their default
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errs.IO(err, "read config %s", path)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errs.IO(err, "parse config %s", path)
	}

	return cfg, nil
}

// Save writes the config to ~/.config/go-stems/config.json
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.IO(err, "create config dir")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errs.IO(err, "encode config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errs.IO(err, "write config %s", path)
	}
	return nil
}
