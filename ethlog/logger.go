// Package ethlog is a small leveled-logging façade over
// github.com/op/go-logging: every line carries a formatted timestamp,
// DEBUG output is gated by the oamdebug build tag, and each session
// picks a log file, a console tee, or both.
package ethlog

import (
	"fmt"
	"os"
	"time"

	"github.com/op/go-logging"
)

var plainFormatter = logging.MustStringFormatter(`%{message}`)

// Sink is a session's logging handle. Each Sink's logger carries its own
// backend, so sessions configured with different log files never write
// into each other's files.
type Sink struct {
	log *logging.Logger
	utc bool
}

// NewSink builds a Sink that writes to logFile (append mode) when set,
// and to stderr when console is true or logFile is empty. Every level,
// ERROR included, goes to the same stderr stream. utc selects UTC
// timestamps over local time.
func NewSink(name, logFile string, console, utc bool) (*Sink, error) {
	var backends []logging.Backend
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("ethlog: open %s: %w", logFile, err)
		}
		backends = append(backends, logging.NewBackendFormatter(logging.NewLogBackend(f, "", 0), plainFormatter))
	}
	if console || logFile == "" {
		backends = append(backends, logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), plainFormatter))
	}
	log := logging.MustGetLogger(name)
	log.SetBackend(logging.MultiLogger(backends...))
	return &Sink{log: log, utc: utc}, nil
}

func (s *Sink) timestamp() string {
	t := time.Now()
	if s.utc {
		t = t.UTC()
	}
	return t.Format("02-Jan-2006 15:04:05")
}

// DebugEnabled reports whether the module was built with -tags oamdebug,
// i.e. whether Debugf emits anything at all.
func DebugEnabled() bool { return debugCompiledIn }

// Debugf logs at DEBUG level. It is a silent no-op unless the module
// was built with -tags oamdebug.
func (s *Sink) Debugf(format string, args ...any) {
	if !debugCompiledIn {
		return
	}
	s.log.Debug(s.timestamp() + " [DEBUG] " + fmt.Sprintf(format, args...))
}

// Infof logs at INFO level.
func (s *Sink) Infof(format string, args ...any) {
	s.log.Info(s.timestamp() + " [INFO] " + fmt.Sprintf(format, args...))
}

// Errorf logs at ERROR level.
func (s *Sink) Errorf(format string, args ...any) {
	s.log.Error(s.timestamp() + " [ERROR] " + fmt.Sprintf(format, args...))
}
