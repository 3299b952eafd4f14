// Package log provides the leveled logging facility used throughout the
// allocator: no third-party logging library, just a small Logger interface
// an embedding application can swap in, with a default implementation
// writing to os.Stderr.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

func init() {
	SetLogger(nil, Config{"log.level": "info"})
}

// Logger is the interface allocator components log through. Applications
// embedding this module may supply their own implementation via SetLogger.
type Logger interface {
	SetLogLevel(string)
	Fatalf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Verbosef(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Tracef(format string, v ...interface{})
}

// Config is a minimal settings bag for SetLogger, kept separate from
// lib.Config to avoid an import cycle between log and lib.
type Config map[string]interface{}

// Level enumerates the severities this package recognizes.
type Level int

const (
	levelIgnore Level = iota + 1
	levelFatal
	levelError
	levelWarn
	levelInfo
	levelVerbose
	levelDebug
	levelTrace
)

var log Logger // package-level logger used by allocator components.

// SetLogger installs logger as the package-level Logger. When logger is
// nil, a defaultLogger is constructed from config's "log.level" and
// "log.file" entries (file empty or absent means os.Stderr).
func SetLogger(logger Logger, config Config) Logger {
	if logger != nil {
		log = logger
		return log
	}

	level := levelInfo
	if val, ok := config["log.level"]; ok {
		level = string2level(val.(string))
	}
	out := io.Writer(os.Stderr)
	if val, ok := config["log.file"]; ok {
		if name, ok := val.(string); ok && len(name) > 0 {
			fd, err := os.OpenFile(name, os.O_RDWR|os.O_APPEND, 0660)
			if err != nil {
				if fd, err = os.Create(name); err != nil {
					panic(err)
				}
			}
			out = fd
		}
	}
	log = &defaultLogger{level: level, out: out}
	return log
}

// Get returns the package-level Logger.
func Get() Logger { return log }

func string2level(s string) Level {
	switch strings.ToLower(s) {
	case "ignore":
		return levelIgnore
	case "fatal":
		return levelFatal
	case "error":
		return levelError
	case "warn":
		return levelWarn
	case "info":
		return levelInfo
	case "verbose":
		return levelVerbose
	case "debug":
		return levelDebug
	case "trace":
		return levelTrace
	}
	return levelInfo
}

type defaultLogger struct {
	level Level
	out   io.Writer
}

func (dl *defaultLogger) SetLogLevel(s string) { dl.level = string2level(s) }

func (dl *defaultLogger) logf(level Level, tag, format string, v ...interface{}) {
	if level > dl.level {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	fmt.Fprintf(dl.out, "%v [%s] %s\n", ts, tag, fmt.Sprintf(format, v...))
}

func (dl *defaultLogger) Fatalf(format string, v ...interface{})   { dl.logf(levelFatal, "FATL", format, v...) }
func (dl *defaultLogger) Errorf(format string, v ...interface{})   { dl.logf(levelError, "ERRO", format, v...) }
func (dl *defaultLogger) Warnf(format string, v ...interface{})    { dl.logf(levelWarn, "WARN", format, v...) }
func (dl *defaultLogger) Infof(format string, v ...interface{})    { dl.logf(levelInfo, "INFO", format, v...) }
func (dl *defaultLogger) Verbosef(format string, v ...interface{}) { dl.logf(levelVerbose, "VERB", format, v...) }
func (dl *defaultLogger) Debugf(format string, v ...interface{})   { dl.logf(levelDebug, "DEBG", format, v...) }
func (dl *defaultLogger) Tracef(format string, v ...interface{})   { dl.logf(levelTrace, "TRAC", format, v...) }
