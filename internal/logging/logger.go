// Package logging builds the daemon's zap logger: JSON lines in the
// profile's log file, console output on stderr, and a level that can be
// changed while running.
package logging

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Path is the JSON log file. Parent directories are created.
	Path    string
	Profile string
	// Level is shared by both outputs. The zero value logs at info.
	Level zap.AtomicLevel
	// Quiet drops the stderr output.
	Quiet bool
}

// New creates the logger. Every entry carries the profile name and PID.
func New(o Options) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(o.Path), 0700); err != nil {
		return nil, eris.Wrap(err, "create log dir")
	}
	file, err := os.OpenFile(o.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, eris.Wrap(err, "open log file")
	}

	level := o.Level
	if level == (zap.AtomicLevel{}) {
		level = zap.NewAtomicLevel()
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), level),
	}
	if !o.Quiet {
		console := enc
		console.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.Fields(
			zap.String("profile", o.Profile),
			zap.Int("pid", os.Getpid()),
		),
	), nil
}

// Level returns an atomic level set from name ("debug", "info", "warn",
// "error"). An empty name means info.
func Level(name string) (zap.AtomicLevel, error) {
	if name == "" {
		return zap.NewAtomicLevel(), nil
	}
	lvl, err := zap.ParseAtomicLevel(name)
	if err != nil {
		return zap.AtomicLevel{}, eris.Wrapf(err, "log level %q", name)
	}
	return lvl, nil
}
