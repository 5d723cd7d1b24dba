package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	root    = zap.NewNop()
	file    *os.File
	mu      sync.Mutex
	enabled bool
)

// Options selects the log sinks
type Options struct {
	Console bool   // human readable lines on stderr
	Verbose bool   // console at debug level instead of info
	File    bool   // debug level file log, truncated per run
	Path    string // file log location, default ~/.config/go-stems/debug.log
}

// DefaultPath returns ~/.config/go-stems/debug.log
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-stems", "debug.log"), nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// NewLogger builds the process logger and makes it the target of Log
func NewLogger(opts Options) (*zap.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	closeFile()

	var cores []zapcore.Core
	enc := zapcore.NewConsoleEncoder(encoderConfig())
	if opts.Console {
		level := zapcore.InfoLevel
		if opts.Verbose {
			level = zapcore.DebugLevel
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}
	if opts.File {
		path := opts.Path
		if path == "" {
			p, err := DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, err
		}
		file = f
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(f), zapcore.DebugLevel))
	}

	if len(cores) == 0 {
		root = zap.NewNop()
		enabled = false
		return root, nil
	}
	root = zap.New(zapcore.NewTee(cores...))
	enabled = true
	root.Named("debug").Debug("=== Debug logging started ===")
	return root, nil
}

// Disable flushes and stops all logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	_ = root.Sync()
	closeFile()
	root = zap.NewNop()
	enabled = false
}

func closeFile() {
	if file != nil {
		file.Sync()
		file.Close()
		file = nil
	}
}

// Log writes a printf style debug message under category
func Log(category, format string, args ...any) {
	mu.Lock()
	l, on := root, enabled
	mu.Unlock()

	if !on {
		return
	}
	l.Named(category).Debug(fmt.Sprintf(format, args...))
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	if n <= 0 {
		n = 1
	}
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
