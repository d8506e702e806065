// Package logging provides the process-wide leveled logger. Info lines go to
// stdout; error lines go to stdout and, when configured, a log file so that
// long pipeline runs leave a trail that outlives the terminal.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

type Logger struct {
	info  *log.Logger
	err   *log.Logger
	errMu sync.Mutex
	errW  io.WriteCloser
}

// New creates a logger. errorsPath may be empty, in which case errors are
// written to stderr only.
func New(errorsPath string) (*Logger, error) {
	l := &Logger{
		info: log.New(os.Stdout, "INFO ", log.LstdFlags|log.Lmicroseconds),
		err:  log.New(os.Stderr, "ERROR ", log.LstdFlags|log.Lmicroseconds),
	}
	if errorsPath == "" {
		return l, nil
	}

	f, err := os.OpenFile(errorsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G304 -- operator-chosen log path
	if err != nil {
		return nil, err
	}
	l.err = log.New(io.MultiWriter(os.Stderr, f), "ERROR ", log.LstdFlags|log.Lmicroseconds)
	l.errW = f
	return l, nil
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return &Logger{
		info: log.New(io.Discard, "", 0),
		err:  log.New(io.Discard, "", 0),
	}
}

func (l *Logger) Close() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if l.errW != nil {
		return l.errW.Close()
	}
	return nil
}

func (l *Logger) Infof(format string, args ...any) {
	l.info.Printf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	l.err.Printf(format, args...)
}

func (l *Logger) Error(err error) {
	if err == nil {
		return
	}
	l.Errorf("%v", err)
}
