// Package log provides rexcache's only legitimate log sites: defect
// logging (refcount underflow) and best-effort destroy-time engine-error
// logging. Nothing on the match/hit hot path logs.
//
// Output goes through github.com/sirupsen/logrus, with optional file
// rotation via gopkg.in/natefinch/lumberjack.v2.
package log

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	current atomic.Value // holds *logrus.Entry
)

func init() {
	current.Store(newDefaultLogger())
}

func newDefaultLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l.WithField("component", "rexcache")
}

// Logger returns the package-level *logrus.Entry every rexcache defect and
// destroy-error log site writes through.
func Logger() *logrus.Entry {
	return current.Load().(*logrus.Entry)
}

// Configure replaces the package-level logger. level parses as a logrus
// level name ("debug", "info", "warn", ...); an empty or invalid level
// sets the level to info. rotatePath, when non-empty,
// routes output through a lumberjack.Logger instead of os.Stderr.
func Configure(level string, rotatePath string, maxSizeMB, maxBackups, maxAgeDays int) {
	mu.Lock()
	defer mu.Unlock()

	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})

	var out io.Writer = os.Stderr
	if rotatePath != "" {
		out = &lumberjack.Logger{
			Filename:   rotatePath,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
	}
	l.SetOutput(out)

	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	current.Store(l.WithField("component", "rexcache"))
}
