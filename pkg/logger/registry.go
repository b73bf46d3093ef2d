// Package logger provides the named-logger registry for FarePipe stages.
//
// Each logical stage owns exactly one logger per process, keyed by name.
// A logger writes through two sinks: a durable log file and the console,
// both sharing one timestamped line format. Re-requesting a cached name
// returns the existing instance unchanged regardless of the path or mode
// supplied on that call (first-writer-wins), so repeated acquisition can
// never duplicate sink registration or reopen file handles.
//
// The registry is an explicit object owned by the process's composition
// root, not an ambient global, and registry loggers never propagate to
// zap's globals: a misconfigured ambient logger cannot produce duplicate
// lines.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode selects how the durable log file is opened.
type Mode string

const (
	// ModeOverwrite truncates the log file on first open.
	ModeOverwrite Mode = "overwrite"
	// ModeAppend preserves existing log file content.
	ModeAppend Mode = "append"
)

// Registry is the process-wide named-logger cache. Safe for concurrent
// use; a mutex guards first-creation of each named entry.
type Registry struct {
	mu      sync.Mutex
	loggers map[string]*zap.Logger
}

// NewRegistry creates an empty logger registry.
func NewRegistry() *Registry {
	return &Registry{loggers: make(map[string]*zap.Logger)}
}

// Get returns the logger for name, creating it on first request. Creation
// makes the log file's parent directory, opens the durable sink in the
// requested mode, tees it with a console sink, and floors both at Info.
// Subsequent calls for the same name return the cached logger and ignore
// filePath and mode.
func (r *Registry) Get(name, filePath string, mode Mode) (*zap.Logger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lg, ok := r.loggers[name]; ok {
		return lg, nil
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == ModeAppend {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(filePath, flags, 0o644) //nolint:gosec // G304: path comes from the composition root
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}

	encCfg := encoderConfig()
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(file), zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), zapcore.InfoLevel),
	)

	lg := zap.New(core).Named(name)
	r.loggers[name] = lg
	return lg, nil
}

// Sync flushes every cached logger. Call once at process exit.
func (r *Registry) Sync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lg := range r.loggers {
		_ = lg.Sync() // stdout sync errors are expected and harmless
	}
}

// encoderConfig is the single shared timestamped line format applied to
// both the file and console sinks.
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}
