// Package logging builds the per-component loggers. Every component logs
// through a standard *log.Logger with a bracketed prefix; this package only
// decides where the lines go.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log destination.
type Options struct {
	// File is the log file path. Empty logs to stderr.
	File string

	// Rotation limits for File.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Quiet discards all output. File is ignored.
	Quiet bool
}

// Sink is a shared log destination.
type Sink struct {
	w      io.Writer
	closer io.Closer
}

// Open creates a sink for opts. A file sink rotates by size.
func Open(opts Options) (*Sink, error) {
	switch {
	case opts.Quiet:
		return &Sink{w: io.Discard}, nil
	case opts.File == "":
		return &Sink{w: os.Stderr}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	return &Sink{w: lj, closer: lj}, nil
}

// Logger returns a logger for component, prefixed "[component] ".
func (s *Sink) Logger(component string) *log.Logger {
	return log.New(s.w, "["+component+"] ", log.LstdFlags)
}

// Writer returns the underlying destination.
func (s *Sink) Writer() io.Writer {
	return s.w
}

// Close flushes and closes a file sink.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
